package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/model"
)

// EnsureGlobalAdmin creates a global admin with the given credentials when the
// database holds no admin user at all. It reports whether a user was created.
func EnsureGlobalAdmin(ctx context.Context, db *sql.DB, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_user`).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "count admins")
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.Wrap(err, "hash password")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO admin_user (id, email, password_hash, name, role, company_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)`,
		uuid.NewString(),
		email,
		string(hash),
		"Administrator",
		model.RoleGlobalAdmin,
		true,
		time.Now().UTC(),
	)
	if err != nil {
		return false, errors.Wrap(err, "insert admin")
	}

	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit")
	}

	log.WithFields(log.Fields{"email": email}).Info("created bootstrap global admin")
	return true, nil
}
