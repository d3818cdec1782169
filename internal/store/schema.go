package store

// Schema contains every table the two stores need. Both stores share one
// database — there is no per-tenant split in this service, unlike the
// teacher's multi-domain hosting layout, since a repository_key is already
// a global namespace here.
const Schema = `
-- blobs: content-addressed key/value storage. Keys are the string form
-- of the content-hash CIDs computed by the element codec; values are never
-- interpreted by this table.
CREATE TABLE IF NOT EXISTS blobs (
    key   TEXT PRIMARY KEY,
    data  BYTEA NOT NULL
);

-- commits: one row per commit blob, plus one physical column per
-- indexed attribute from the fixed column set. branch_name is the
-- comma-joined list of branches whose current head this commit is,
-- or '' if the commit is no longer a head.
CREATE TABLE IF NOT EXISTS commits (
    key                       TEXT PRIMARY KEY,
    value                     BYTEA NOT NULL,
    repository_key            TEXT NOT NULL DEFAULT '',
    branch_name               TEXT NOT NULL DEFAULT '',
    subject_key               TEXT NOT NULL DEFAULT '',
    subject_branch            TEXT NOT NULL DEFAULT '',
    subject_commit            TEXT NOT NULL DEFAULT '',
    predicate_key             TEXT NOT NULL DEFAULT '',
    predicate_branch          TEXT NOT NULL DEFAULT '',
    predicate_commit          TEXT NOT NULL DEFAULT '',
    object_key                TEXT NOT NULL DEFAULT '',
    object_branch             TEXT NOT NULL DEFAULT '',
    object_commit             TEXT NOT NULL DEFAULT '',
    resource_object_type      TEXT NOT NULL DEFAULT '',
    resource_life_cycle_state TEXT NOT NULL DEFAULT '',
    keyword                   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_commits_repository_key ON commits(repository_key);
CREATE INDEX IF NOT EXISTS idx_commits_branch_name ON commits(repository_key, branch_name);
CREATE INDEX IF NOT EXISTS idx_commits_subject ON commits(subject_key, predicate_key);
CREATE INDEX IF NOT EXISTS idx_commits_resource ON commits(resource_object_type, resource_life_cycle_state);
CREATE INDEX IF NOT EXISTS idx_commits_keyword ON commits(keyword);

-- commit_events: sequenced log of successful commits, used by the
-- subscribeCommits notification feed. Mirrors the commit DAG but is
-- purely a replay aid — it is never consulted by push/pull/checkout.
CREATE TABLE IF NOT EXISTS commit_events (
    seq          BIGSERIAL PRIMARY KEY,
    repository_key TEXT NOT NULL,
    payload      BYTEA NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_commit_events_seq ON commit_events(seq);
`
