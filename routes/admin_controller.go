package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/civic-survey/app"
	"github.com/mbolis/civic-survey/httpx"
	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/model"
	"github.com/mbolis/civic-survey/routes/middlewares"
)

const minPasswordLength = 6

func principal(r *http.Request) middlewares.Principal {
	p, _ := middlewares.GetPrincipal(r)
	return p
}

func Profile(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)

		user := model.AdminUser{}
		var companyID, companyName sql.NullString
		err := app.QueryRowContext(r.Context(), `
			SELECT u.id, u.email, u.name, u.role, u.is_active, u.created_at, u.company_id, c.name
			FROM admin_user u
			LEFT OUTER JOIN company c ON (c.id = u.company_id)
			WHERE u.id = $1`,
			p.UserID,
		).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.IsActive, &user.CreatedAt, &companyID, &companyName)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "get_profile", p.UserID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_profile", err)
			return
		}
		user.CompanyID, user.CompanyName = companyID.String, companyName.String

		render.JSON(w, r, map[string]any{
			"user": user,
		})
	}
}

func ListCompanies(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT id, name, slug, created_at, updated_at
			FROM company
			WHERE deleted_at IS NULL
			ORDER BY name`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_companies", err)
			return
		}
		defer rows.Close()

		companies := []model.Company{}
		for rows.Next() {
			c := model.Company{}
			err = rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_companies.scan", err)
				return
			}
			companies = append(companies, c)
		}
		if err = rows.Err(); err != nil {
			httpx.LogInternalError(w, r, "db.get_companies.next", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"companies": companies,
		})
	}
}

func CreateCompany(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		company := model.Company{}
		err := render.DecodeJSON(r.Body, &company)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		company.Name = strings.TrimSpace(company.Name)
		if company.Slug == "" {
			company.Slug = company.Name
		}
		company.Slug = model.Slugify(company.Slug)
		if company.Name == "" || company.Slug == "" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "company.validate", "name is required")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var taken bool
		err = tx.QueryRowContext(r.Context(), `SELECT 1 FROM company WHERE slug = $1`, company.Slug).Scan(&taken)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			httpx.LogInternalError(w, r, "db.insert_company.check_slug", err)
			return
		}
		if taken {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "company.slug_taken", "slug %q is already taken", company.Slug)
			return
		}

		now := time.Now().UTC()
		company.ID = uuid.NewString()
		company.CreatedAt, company.UpdatedAt = now, now
		_, err = tx.ExecContext(r.Context(), `
			INSERT INTO company (id, name, slug, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			company.ID,
			company.Name,
			company.Slug,
			company.CreatedAt,
			company.UpdatedAt,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_company", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_company.commit", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, company)
	}
}

func CreateCompanyAdmin(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID := chi.URLParam(r, "id")

		user := model.AdminUser{}
		err := render.DecodeJSON(r.Body, &user)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		user.Email = strings.ToLower(strings.TrimSpace(user.Email))
		user.Name = strings.TrimSpace(user.Name)
		if !strings.Contains(user.Email, "@") {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "admin.validate", "a valid email is required")
			return
		}
		if len(user.Password) < minPasswordLength {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "admin.validate", "password must be at least %d characters", minPasswordLength)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.LogInternalError(w, r, "admin.hash_password", err)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		err = tx.QueryRowContext(r.Context(), `
			SELECT name FROM company
			WHERE id = $1
				AND deleted_at IS NULL`,
			companyID,
		).Scan(&user.CompanyName)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "insert_admin.get_company", companyID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_admin.get_company", err)
			return
		}

		var taken bool
		err = tx.QueryRowContext(r.Context(), `SELECT 1 FROM admin_user WHERE email = $1`, user.Email).Scan(&taken)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			httpx.LogInternalError(w, r, "db.insert_admin.check_email", err)
			return
		}
		if taken {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "admin.email_taken", "email %q is already registered", user.Email)
			return
		}

		user.ID = uuid.NewString()
		user.Role = model.RoleCompanyAdmin
		user.CompanyID = companyID
		user.IsActive = true
		user.CreatedAt = time.Now().UTC()
		_, err = tx.ExecContext(r.Context(), `
			INSERT INTO admin_user (id, email, password_hash, name, role, company_id, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			user.ID,
			user.Email,
			string(hash),
			user.Name,
			user.Role,
			user.CompanyID,
			user.IsActive,
			user.CreatedAt,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_admin", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_admin.commit", err)
			return
		}

		user.Password = ""
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, user)
	}
}

func GetOwnCompany(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)

		company := model.Company{}
		err := app.QueryRowContext(r.Context(), `
			SELECT id, name, slug, created_at, updated_at
			FROM company
			WHERE id = $1
				AND deleted_at IS NULL`,
			p.CompanyID,
		).Scan(&company.ID, &company.Name, &company.Slug, &company.CreatedAt, &company.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "get_company", p.CompanyID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_company", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"company": company,
		})
	}
}
