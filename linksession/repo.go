package linksession

import "time"

type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
	DeleteExpired(now time.Time) int
}
