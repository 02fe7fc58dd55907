package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/repository"
)

// AdminGroupHandler implements the ADMIN-gated CRUD over groups and
// their memberships.
type AdminGroupHandler struct {
	Groups GroupStore
	Users  UserStore
}

func NewAdminGroupHandler(groups GroupStore, users UserStore) *AdminGroupHandler {
	return &AdminGroupHandler{Groups: groups, Users: users}
}

type groupReq struct {
	Name string `json:"name"`
}

// Create adds a group.
func (h *AdminGroupHandler) Create(c echo.Context) error {
	var req groupReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return httperr.Validation([]httperr.FieldError{
			{Field: "name", Message: "field required"},
		})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	g := model.Group{Name: req.Name}
	if err := h.Groups.Create(ctx, &g); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return httperr.Validation([]httperr.FieldError{
				{Field: "name", Message: "name already exists"},
			})
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "group was added"})
}

// Get returns a single group by id.
func (h *AdminGroupHandler) Get(c echo.Context) error {
	id, err := pathID(c, "group_id")
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	g, err := h.Groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("group does not exist")
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, g.JSON())
}

// List returns all groups.
func (h *AdminGroupHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	groups, err := h.Groups.List(ctx)
	if err != nil {
		return httperr.ServerError()
	}
	out := make([]map[string]any, 0, len(groups))
	for i := range groups {
		out = append(out, groups[i].JSON())
	}
	return c.JSON(http.StatusOK, echo.Map{"groups": out})
}

// Update renames a group.
func (h *AdminGroupHandler) Update(c echo.Context) error {
	id, err := pathID(c, "group_id")
	if err != nil {
		return err
	}
	var req groupReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return httperr.Validation([]httperr.FieldError{
			{Field: "name", Message: "field required"},
		})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Groups.UpdateName(ctx, id, req.Name); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return httperr.NotFound("group does not exist")
		case errors.Is(err, repository.ErrDuplicate):
			return httperr.Validation([]httperr.FieldError{
				{Field: "name", Message: "name already exists"},
			})
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "group was updated"})
}

// Delete removes a group and its membership rows.
func (h *AdminGroupHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "group_id")
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Groups.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("group does not exist")
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "group was deleted"})
}

// AddMember puts a user into a group.  Re-adding an existing member is
// a no-op success.
func (h *AdminGroupHandler) AddMember(c echo.Context) error {
	groupID, err := pathID(c, "group_id")
	if err != nil {
		return err
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Groups.GetByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("group does not exist")
		}
		return httperr.ServerError()
	}
	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("user does not exist")
		}
		return httperr.ServerError()
	}

	if err := h.Groups.AddUser(ctx, groupID, userID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusOK, echo.Map{"message": "user was added to group"})
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "user was added to group"})
}

// RemoveMember takes a user out of a group.
func (h *AdminGroupHandler) RemoveMember(c echo.Context) error {
	groupID, err := pathID(c, "group_id")
	if err != nil {
		return err
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Groups.RemoveUser(ctx, groupID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("user is not in group")
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user was removed from group"})
}

// Members lists the users in a group.
func (h *AdminGroupHandler) Members(c echo.Context) error {
	groupID, err := pathID(c, "group_id")
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Groups.GetByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("group does not exist")
		}
		return httperr.ServerError()
	}
	users, err := h.Groups.ListMembers(ctx, groupID)
	if err != nil {
		return httperr.ServerError()
	}
	out := make([]map[string]any, 0, len(users))
	for i := range users {
		out = append(out, users[i].JSON())
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}
