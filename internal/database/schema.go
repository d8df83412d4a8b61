package database

import (
	"context"
	"database/sql"
	"fmt"
)

// The status and return-of-service tables are append-only.  A stored
// generated column mirrors participant_id only while is_current is set, and
// a UNIQUE index on it allows at most one current row per participant (NULLs
// never collide in a MySQL unique index).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS participants (
		id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		first_name         VARCHAR(100)    NOT NULL,
		last_name          VARCHAR(100)    NOT NULL,
		email              VARCHAR(255)    NOT NULL,
		phone_number       VARCHAR(32)     NOT NULL DEFAULT '',
		postal_code        VARCHAR(16)     NOT NULL DEFAULT '',
		preferred_location VARCHAR(255)    NOT NULL DEFAULT '',
		interested         VARCHAR(16)     NOT NULL DEFAULT 'yes',
		crc_clear          VARCHAR(8)      NOT NULL DEFAULT 'no',
		created_at         DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at         DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_participants_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS employer_sites (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		site_id          INT UNSIGNED    NOT NULL,
		site_name        VARCHAR(255)    NOT NULL,
		health_authority VARCHAR(64)     NOT NULL,
		operator_name    VARCHAR(255)    NOT NULL DEFAULT '',
		city             VARCHAR(100)    NOT NULL DEFAULT '',
		allocation       INT             NOT NULL DEFAULT 0,
		created_at       DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at       DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_employer_sites_site_id (site_id),
		KEY ix_employer_sites_region (health_authority)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS participant_status (
		id                     BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		participant_id         BIGINT UNSIGNED NOT NULL,
		employer_id            VARCHAR(64)     NULL,
		site_id                BIGINT UNSIGNED NULL,
		status                 VARCHAR(32)     NOT NULL,
		data                   JSON            NULL,
		is_current             TINYINT(1)      NOT NULL DEFAULT 1,
		current_participant_id BIGINT UNSIGNED AS (IF(is_current = 1, participant_id, NULL)) STORED,
		created_at             DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_participant_status_current (current_participant_id),
		KEY ix_participant_status_history (participant_id, created_at),
		KEY ix_participant_status_current (is_current, status),
		CONSTRAINT fk_participant_status_participant FOREIGN KEY (participant_id) REFERENCES participants (id) ON DELETE CASCADE,
		CONSTRAINT fk_participant_status_site FOREIGN KEY (site_id) REFERENCES employer_sites (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS ros_status (
		id                     BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		participant_id         BIGINT UNSIGNED NOT NULL,
		site_id                BIGINT UNSIGNED NOT NULL,
		status                 VARCHAR(32)     NOT NULL,
		data                   JSON            NULL,
		previous_id            BIGINT UNSIGNED NULL,
		created_by             VARCHAR(64)     NOT NULL DEFAULT '',
		is_current             TINYINT(1)      NOT NULL DEFAULT 1,
		current_participant_id BIGINT UNSIGNED AS (IF(is_current = 1, participant_id, NULL)) STORED,
		created_at             DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_ros_status_current (current_participant_id),
		KEY ix_ros_status_history (participant_id, created_at),
		CONSTRAINT fk_ros_status_participant FOREIGN KEY (participant_id) REFERENCES participants (id) ON DELETE CASCADE,
		CONSTRAINT fk_ros_status_site FOREIGN KEY (site_id) REFERENCES employer_sites (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS post_secondary_institutions (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		institute_name   VARCHAR(255)    NOT NULL,
		health_authority VARCHAR(64)     NOT NULL,
		postal_code      VARCHAR(16)     NOT NULL DEFAULT '',
		available_seats  INT             NOT NULL DEFAULT 0,
		created_at       DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_psi_name (institute_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS cohorts (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		psi_id      BIGINT UNSIGNED NOT NULL,
		cohort_name VARCHAR(255)    NOT NULL,
		start_date  DATE            NOT NULL,
		end_date    DATE            NOT NULL,
		cohort_size INT             NOT NULL DEFAULT 0,
		created_at  DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		CONSTRAINT fk_cohorts_psi FOREIGN KEY (psi_id) REFERENCES post_secondary_institutions (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS cohort_participants (
		participant_id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		cohort_id      BIGINT UNSIGNED NOT NULL,
		assigned_by    VARCHAR(64)     NOT NULL DEFAULT '',
		created_at     DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY ix_cohort_participants_cohort (cohort_id),
		CONSTRAINT fk_cohort_participants_participant FOREIGN KEY (participant_id) REFERENCES participants (id) ON DELETE CASCADE,
		CONSTRAINT fk_cohort_participants_cohort FOREIGN KEY (cohort_id) REFERENCES cohorts (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS phases (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(255)    NOT NULL,
		start_date DATE            NOT NULL,
		end_date   DATE            NOT NULL,
		created_at DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS site_allocations (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		phase_id   BIGINT UNSIGNED NOT NULL,
		site_id    BIGINT UNSIGNED NOT NULL,
		allocation INT             NOT NULL DEFAULT 0,
		created_at DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_site_allocations (phase_id, site_id),
		CONSTRAINT fk_site_allocations_phase FOREIGN KEY (phase_id) REFERENCES phases (id),
		CONSTRAINT fk_site_allocations_site FOREIGN KEY (site_id) REFERENCES employer_sites (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		keycloak_id VARCHAR(64)     NOT NULL,
		email       VARCHAR(255)    NOT NULL DEFAULT '',
		username    VARCHAR(255)    NOT NULL DEFAULT '',
		created_at  DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at  DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_users_keycloak (keycloak_id),
		KEY ix_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_sites (
		user_id BIGINT UNSIGNED NOT NULL,
		site_id BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (user_id, site_id),
		CONSTRAINT fk_user_sites_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_user_sites_site FOREIGN KEY (site_id) REFERENCES employer_sites (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.  Statements are idempotent and run in
// dependency order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
