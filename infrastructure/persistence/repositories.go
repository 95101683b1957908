package persistence

import (
	"github.com/jmoiron/sqlx"

	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
)

// Repositories bundles the relational repositories for one database handle.
type Repositories struct {
	Connections    repository.IConnection
	Credentials    repository.IAppCredential
	Posts          repository.IPost
	PublishRecords repository.IPublishRecord
	PublishAudits  repository.IPublishAudit
}

func NewRepositories(db *sqlx.DB, dialect Dialect) *Repositories {
	var connections repository.IConnection = NewConnectionRepository(db)
	if dialect == DialectMSSQL {
		connections = NewConnectionRepositoryMSSQL(db)
	}
	return &Repositories{
		Connections:    connections,
		Credentials:    NewAppCredentialRepository(db, dialect),
		Posts:          NewPostRepository(db),
		PublishRecords: NewPublishRecordRepository(db, dialect),
		PublishAudits:  NewPublishAuditRepository(db, dialect),
	}
}
