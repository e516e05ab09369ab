package httpx

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/oauth"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/civic-survey/config"
	"github.com/mbolis/civic-survey/log"
)

// Claim keys carried by every access token.
const (
	ClaimRole      = "role"
	ClaimCompanyID = "company_id"
	ClaimUserID    = "user_id"
	ClaimEmail     = "email"
)

var (
	ErrBadCredentials = errors.New("invalid email or password")
	ErrInactive       = errors.New("account disabled")
	errNoRefresh      = errors.New("could not refresh")
)

// NewBearerServer issues and refreshes tokens for admin users.
func NewBearerServer(db *sql.DB, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(
		cfg.TokenSecret,
		cfg.AccessTTL,
		CredentialsVerifier(db, cfg.RefreshTTL),
		nil,
	)
}

type credentialsVerifier struct {
	db         *sql.DB
	refreshTTL time.Duration
}

func CredentialsVerifier(db *sql.DB, refreshTTL time.Duration) oauth.CredentialsVerifier {
	return &credentialsVerifier{db, refreshTTL}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	var hash string
	var active bool
	err := cs.db.
		QueryRowContext(r.Context(), "SELECT password_hash, is_active FROM admin_user WHERE email = $1", normalizeEmail(username)).
		Scan(&hash, &active)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debugf("login.unknown_user: %s", username)
		return ErrBadCredentials
	}
	if err != nil {
		log.Errorf("db.login.get_user: %s", err)
		return err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		log.Debugf("login.bad_password: %s", username)
		return ErrBadCredentials
	}
	if !active {
		log.Debugf("login.inactive: %s", username)
		return ErrInactive
	}
	return nil
}

func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	now := time.Now().UTC()
	_, err := cs.db.Exec("DELETE FROM token WHERE expiration <= $1", now)
	if err != nil {
		return err
	}

	_, err = cs.db.Exec(
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES ($1, $2, $3, $4)",
		normalizeEmail(credential),
		tokenID,
		refreshTokenID,
		now.Add(cs.refreshTTL),
	)
	return err
}

// ValidateTokenID consumes a refresh token: each one can be used only once.
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	res, err := cs.db.Exec(`
		DELETE FROM token
		WHERE username = $1
			AND token_id = $2
			AND refresh_token_id = $3
			AND expiration > $4`,
		normalizeEmail(credential),
		tokenID,
		refreshTokenID,
		time.Now().UTC(),
	)
	if err != nil {
		log.Errorf("db.refresh.delete_token: %s", err)
		return errNoRefresh
	}

	n, err := res.RowsAffected()
	if err != nil || n < 1 {
		return errNoRefresh
	}
	return nil
}

// AddClaims reloads the user on every issued token, so a refresh picks up
// role changes and fails for accounts disabled in the meantime.
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	var id, email, role string
	var companyID sql.NullString
	var active bool
	err := cs.db.
		QueryRowContext(r.Context(), `
			SELECT id, email, role, company_id, is_active
			FROM admin_user
			WHERE email = $1`,
			normalizeEmail(credential),
		).
		Scan(&id, &email, &role, &companyID, &active)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrInactive
	}

	return map[string]string{
		ClaimRole:      role,
		ClaimCompanyID: companyID.String,
		ClaimUserID:    id,
		ClaimEmail:     email,
	}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}

// RevokeTokens drops every stored refresh token of a user.
func RevokeTokens(r *http.Request, db *sql.DB, credential string) (int64, error) {
	res, err := db.ExecContext(r.Context(), "DELETE FROM token WHERE username = $1", normalizeEmail(credential))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
