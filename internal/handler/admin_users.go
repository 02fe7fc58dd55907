package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/config"
	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/utils"
)

// AdminUserHandler implements the ADMIN-gated CRUD over user records.
type AdminUserHandler struct {
	Cfg    config.Config
	Users  UserStore
	Hasher utils.Hasher
}

func NewAdminUserHandler(cfg config.Config, users UserStore, hasher utils.Hasher) *AdminUserHandler {
	return &AdminUserHandler{Cfg: cfg, Users: users, Hasher: hasher}
}

type adminUserCreateReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     *int   `json:"role"`
}

// adminUserPatch lists the mutable fields of a user record.  Nil means
// "leave unchanged"; only non-nil fields are validated and applied.
type adminUserPatch struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
	Role     *int    `json:"role"`
	Active   *bool   `json:"active"`
}

// Create adds a user record.  Role defaults to USER when absent.
func (h *AdminUserHandler) Create(c echo.Context) error {
	var req adminUserCreateReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	ctx, cancel := reqCtx(c)
	defer cancel()

	role := model.RoleUser
	var fields []httperr.FieldError
	if !emailRegex.MatchString(req.Email) {
		fields = append(fields, httperr.FieldError{Field: "email", Message: "value is not a valid email address"})
	} else if exists, err := h.Users.ExistsEmail(ctx, req.Email, 0); err != nil {
		return httperr.ServerError()
	} else if exists {
		fields = append(fields, httperr.FieldError{Field: "email", Message: "email already exists"})
	}
	if req.Username == "" {
		fields = append(fields, httperr.FieldError{Field: "username", Message: "field required"})
	} else if exists, err := h.Users.ExistsUsername(ctx, req.Username, 0); err != nil {
		return httperr.ServerError()
	} else if exists {
		fields = append(fields, httperr.FieldError{Field: "username", Message: "username already exists"})
	}
	if err := validPassword(req.Password); err != nil {
		fields = append(fields, httperr.FieldError{Field: "password", Message: err.Error()})
	}
	if strings.TrimSpace(req.Name) == "" {
		fields = append(fields, httperr.FieldError{Field: "name", Message: "field required"})
	}
	if req.Role != nil {
		role = model.Role(*req.Role)
		if !role.Valid() {
			fields = append(fields, httperr.FieldError{Field: "role", Message: "value is not a valid role"})
		}
	}
	if len(fields) > 0 {
		return httperr.Validation(fields)
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return httperr.ServerError()
	}
	u := model.User{
		Email:        req.Email,
		Username:     req.Username,
		Name:         strings.TrimSpace(req.Name),
		Active:       false,
		Role:         role,
		PasswordHash: &hash,
	}
	if err := h.Users.Create(ctx, &u); err != nil {
		if f, ok := duplicateField(err); ok {
			return httperr.Validation([]httperr.FieldError{f})
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "user was added"})
}

// Get returns a single user record by id.
func (h *AdminUserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "user_id")
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("user does not exist")
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, u.JSON())
}

// List returns a page of user records.  Filter and order expressions
// come from the query string; ordering always ends with a created-at
// tiebreak so pages are stable.
func (h *AdminUserHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	if perPage < 1 {
		perPage = h.Cfg.PostsPerPage
	}
	if perPage > h.Cfg.MaxPerPage {
		perPage = h.Cfg.MaxPerPage
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Users.List(ctx, repository.ListParams{
		Page:    page,
		PerPage: perPage,
		Filter:  c.QueryParam("filter"),
		OrderBy: c.QueryParam("order_by"),
	})
	if err != nil {
		if errors.Is(err, repository.ErrBadListExpr) {
			return httperr.BadRequest()
		}
		return httperr.ServerError()
	}

	users := make([]map[string]any, 0, len(res.Users))
	for i := range res.Users {
		users = append(users, res.Users[i].JSON())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"page":            res.Page,
		"per_page":        res.PerPage,
		"number_of_pages": res.NumberOfPages,
		"total":           res.Total,
		"users":           users,
	})
}

// Update applies a partial update after re-validating uniqueness
// against every record but this one.
func (h *AdminUserHandler) Update(c echo.Context) error {
	id, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	var patch adminUserPatch
	if err := c.Bind(&patch); err != nil {
		return httperr.InvalidPayload()
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("user does not exist")
		}
		return httperr.ServerError()
	}

	var fields []httperr.FieldError
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if !emailRegex.MatchString(email) {
			fields = append(fields, httperr.FieldError{Field: "email", Message: "value is not a valid email address"})
		} else if exists, err := h.Users.ExistsEmail(ctx, email, u.ID); err != nil {
			return httperr.ServerError()
		} else if exists {
			fields = append(fields, httperr.FieldError{Field: "email", Message: "email already exists"})
		} else {
			u.Email = email
		}
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			fields = append(fields, httperr.FieldError{Field: "username", Message: "field required"})
		} else if exists, err := h.Users.ExistsUsername(ctx, username, u.ID); err != nil {
			return httperr.ServerError()
		} else if exists {
			fields = append(fields, httperr.FieldError{Field: "username", Message: "username already exists"})
		} else {
			u.Username = username
		}
	}
	if patch.Password != nil {
		if err := validPassword(*patch.Password); err != nil {
			fields = append(fields, httperr.FieldError{Field: "password", Message: err.Error()})
		} else {
			hash, err := h.Hasher.Hash(*patch.Password)
			if err != nil {
				return httperr.ServerError()
			}
			u.PasswordHash = &hash
		}
	}
	if patch.Name != nil {
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Role != nil {
		role := model.Role(*patch.Role)
		if !role.Valid() {
			fields = append(fields, httperr.FieldError{Field: "role", Message: "value is not a valid role"})
		} else {
			u.Role = role
		}
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	if len(fields) > 0 {
		return httperr.Validation(fields)
	}

	if err := h.Users.Update(ctx, &u); err != nil {
		if f, ok := duplicateField(err); ok {
			return httperr.Validation([]httperr.FieldError{f})
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user was updated"})
}

// Delete removes a user record and its group associations.
func (h *AdminUserHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "user_id")
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("user does not exist")
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user was deleted"})
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, httperr.BadRequest()
	}
	return id, nil
}
