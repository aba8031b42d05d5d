package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups the concrete PostgreSQL repository implementations.
type Repositories struct {
	Users           *UserRepository
	Credentials     *CredentialRepository
	Emails          *EmailRepository
	Authentications *AuthenticationRepository
	Sessions        *SessionRepository
	Unregistered    *UnregisteredResetRepository
	Tx              *TxManager
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:           NewUserRepository(pool),
		Credentials:     NewCredentialRepository(pool),
		Emails:          NewEmailRepository(pool),
		Authentications: NewAuthenticationRepository(pool),
		Sessions:        NewSessionRepository(pool),
		Unregistered:    NewUnregisteredResetRepository(pool),
		Tx:              NewTxManager(pool),
	}
}
