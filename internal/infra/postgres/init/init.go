package infra_pg_init

import (
	"log"

	"github.com/humanbelnik/kinomatch/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func MustEstablishConn(cfg config.Postgres) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}

	if _, err := db.Exec(Schema); err != nil {
		log.Fatal("schema migration failed: ", err)
	}

	return db
}
