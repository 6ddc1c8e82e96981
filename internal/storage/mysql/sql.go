package mysql

const createActivitySQL = `
CREATE TABLE IF NOT EXISTS automation_activity (
  id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  kind        VARCHAR(16)  NOT NULL,
  review_id   VARCHAR(255) NOT NULL,
  rating      INT          NOT NULL,
  reviewer    VARCHAR(255) NULL,
  response    TEXT         NULL,
  error       TEXT         NULL,
  latency_ms  BIGINT       NOT NULL DEFAULT 0,
  created_at  TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (id),
  KEY idx_activity_review (review_id),
  KEY idx_activity_created (created_at)
)
`

const insertActivitySQL = `
INSERT INTO automation_activity
  (kind, review_id, rating, reviewer, response, error, latency_ms, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

const recentActivitySQL = `
SELECT kind, review_id, rating, reviewer, response, error, latency_ms, created_at
FROM automation_activity
ORDER BY created_at DESC, id DESC
LIMIT ?
`
