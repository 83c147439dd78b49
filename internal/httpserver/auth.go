package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/authz"
	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
)

type signupRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// tokenRequest follows the OAuth password and refresh_token grants.
type tokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type" binding:"required,oneof=password refresh_token"`
	Username     string `form:"username" json:"username"`
	Password     string `form:"password" json:"password"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int              `json:"expires_in"`
	Customer     *domain.Customer `json:"customer"`
}

type meResponse struct {
	Customer *domain.Customer        `json:"customer"`
	Profile  *domain.CustomerProfile `json:"profile"`
}

func (h *handlers) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	cust, err := h.Customers.Signup(c.Request.Context(), customersvc.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"customer": cust})
}

func (h *handlers) token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "grant_type must be password or refresh_token")
		return
	}
	var (
		session *customersvc.Session
		err     error
	)
	switch req.GrantType {
	case "password":
		if req.Username == "" || req.Password == "" {
			badRequest(c, "username and password are required")
			return
		}
		session, err = h.Customers.Login(c.Request.Context(), req.Username, req.Password)
	default:
		if req.RefreshToken == "" {
			badRequest(c, "refresh_token is required")
			return
		}
		session, err = h.Customers.Refresh(c.Request.Context(), req.RefreshToken)
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    session.ExpiresIn,
		Customer:     session.Customer,
	})
}

func (h *handlers) logout(c *gin.Context) {
	if err := h.Customers.Logout(c.Request.Context(), bearerToken(c.GetHeader("Authorization"))); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	p := principal(c)
	profile, err := h.Customers.Profile(c.Request.Context(), p.CustomerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, meResponse{
		Customer: &domain.Customer{ID: p.CustomerID, Email: p.Email, Roles: p.Roles},
		Profile:  profile,
	})
}

func (h *handlers) updateProfile(c *gin.Context) {
	var in customersvc.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "malformed profile")
		return
	}
	profile, err := h.Customers.UpdateProfile(c.Request.Context(), principal(c).CustomerID, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// access reports the gate decision for a client-side route.
func (h *handlers) access(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		badRequest(c, "path is required")
		return
	}
	c.JSON(http.StatusOK, authz.Check(principal(c), authz.RequirementFor(path)))
}

type rolesRequest struct {
	Roles []domain.Role `json:"roles"`
}

func (h *handlers) setRoles(c *gin.Context) {
	var req rolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "roles must be a list")
		return
	}
	cust, err := h.Customers.SetRoles(c.Request.Context(), c.Param("id"), req.Roles)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *handlers) findCustomers(c *gin.Context) {
	list, err := h.Customers.SearchByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": list})
}
