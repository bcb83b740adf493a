package server

import (
	"strings"

	"rosegold/market-service/internal/auth"

	"github.com/gofiber/fiber/v2"
)

const claimsKey = "claims"

// response is the envelope every JSON endpoint returns, matching what the
// mobile client expects.
type response struct {
	Data  interface{} `json:"data"`
	Error []string    `json:"error"`
}

func ok(data interface{}) response {
	return response{Data: data, Error: []string{}}
}

func fail(messages ...string) response {
	return response{Data: nil, Error: messages}
}

// requireAuth verifies the bearer token and attaches the verified identity
// to the request. Handlers downstream trust only this identity, never ids
// inside payloads.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return c.Status(fiber.StatusForbidden).JSON(fail("unauthorized"))
	}

	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fail("unauthorized"))
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}
