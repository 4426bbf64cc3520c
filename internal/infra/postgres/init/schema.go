package infra_pg_init

// FeedChannel is the LISTEN/NOTIFY channel carrying member and match inserts.
const FeedChannel = "session_feed"

// Schema is applied on every start and must stay idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                UUID PRIMARY KEY,
	host_id           TEXT NOT NULL,
	provider_ids      TEXT[] NOT NULL,
	genre_ids         TEXT[] NOT NULL,
	max_certification TEXT NOT NULL DEFAULT '12',
	required_votes    INTEGER NOT NULL DEFAULT 2 CHECK (required_votes >= 1),
	total_members     INTEGER NOT NULL DEFAULT 1 CHECK (total_members >= 1),
	active            BOOLEAN NOT NULL DEFAULT TRUE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS session_members (
	id         BIGSERIAL PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	name       TEXT,
	joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, user_id)
);

CREATE TABLE IF NOT EXISTS swipes (
	id           BIGSERIAL PRIMARY KEY,
	session_id   UUID NOT NULL,
	user_id      TEXT NOT NULL,
	movie_id     BIGINT NOT NULL,
	direction    TEXT NOT NULL CHECK (direction IN ('like', 'dislike')),
	movie        JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	retracted_at TIMESTAMPTZ,
	CONSTRAINT swipes_member_fkey FOREIGN KEY (session_id, user_id)
		REFERENCES session_members (session_id, user_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS swipes_session_user_idx ON swipes (session_id, user_id, id DESC);
CREATE INDEX IF NOT EXISTS swipes_session_movie_idx ON swipes (session_id, movie_id);

CREATE TABLE IF NOT EXISTS matches (
	id         BIGSERIAL PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	movie_id   BIGINT NOT NULL,
	movie      JSONB NOT NULL,
	matched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, movie_id)
);

CREATE OR REPLACE FUNCTION notify_session_feed() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('session_feed', json_build_object('table', TG_TABLE_NAME, 'id', NEW.id)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS session_members_feed ON session_members;
CREATE TRIGGER session_members_feed AFTER INSERT ON session_members
	FOR EACH ROW EXECUTE FUNCTION notify_session_feed();

DROP TRIGGER IF EXISTS matches_feed ON matches;
CREATE TRIGGER matches_feed AFTER INSERT ON matches
	FOR EACH ROW EXECUTE FUNCTION notify_session_feed();
`
