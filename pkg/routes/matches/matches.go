// Package matches exposes the matching engine over HTTP.
package matches

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bloom/pkg/context"
	"github.com/Ramsey-B/bloom/pkg/matching"
	"github.com/Ramsey-B/bloom/pkg/models"
)

// Register registers match routes
func Register(g *echo.Group) {
	g.GET("", FindMatches)
	g.GET("/recommended", RecommendedMatches)
	g.GET("/compatibility/:userId", CalculateCompatibility)
}

// FindMatches returns ranked matches for the authenticated user
func FindMatches(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "X-User-ID header is required")
	}

	opts := parseOptions(c)

	ctx, engine, err := ectoinject.GetContext[*matching.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := engine.FindMatches(ctx, userID, opts)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// RecommendedMatches returns graph-first recommendations for the
// authenticated user
func RecommendedMatches(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "X-User-ID header is required")
	}

	opts := parseOptions(c)

	ctx, engine, err := ectoinject.GetContext[*matching.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := engine.RecommendedUsers(ctx, userID, opts.Limit, opts)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// CalculateCompatibility scores the authenticated user against one other user
func CalculateCompatibility(c echo.Context) error {
	ctx := c.Request().Context()
	userID := context.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "X-User-ID header is required")
	}

	otherUserID := c.Param("userId")

	matchingContext := models.MatchingContext(c.QueryParam("context"))

	ctx, engine, err := ectoinject.GetContext[*matching.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	score, err := engine.CalculateCompatibility(ctx, userID, otherUserID, matchingContext)
	if err != nil {
		return err
	}
	if score == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "profile not found")
	}

	return c.JSON(http.StatusOK, score)
}

// parseOptions reads the match options from query parameters. Invalid values
// are left to the engine's validator to reject.
func parseOptions(c echo.Context) models.MatchOptions {
	var opts models.MatchOptions

	if v := c.QueryParam("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := c.QueryParam("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.Context = models.MatchingContext(c.QueryParam("context"))
	opts.ExcludeMatched = c.QueryParam("exclude_matched") == "true"

	if v := c.QueryParam("min_score"); v != "" {
		if minScore, err := strconv.ParseFloat(v, 64); err == nil {
			opts.Filters.MinScore = &minScore
		}
	}
	if v := c.QueryParam("max_distance_km"); v != "" {
		opts.Filters.MaxDistanceKm, _ = strconv.ParseFloat(v, 64)
	}
	opts.Filters.VerifiedOnly = c.QueryParam("verified_only") == "true"
	opts.Filters.HasPhotos = c.QueryParam("has_photos") == "true"

	if v := c.QueryParam("genders"); v != "" {
		opts.Filters.Genders = splitCSV(v)
	}
	if v := c.QueryParam("interests"); v != "" {
		opts.Filters.Interests = splitCSV(v)
	}

	minAge, _ := strconv.Atoi(c.QueryParam("min_age"))
	maxAge, _ := strconv.Atoi(c.QueryParam("max_age"))
	if minAge > 0 || maxAge > 0 {
		if maxAge == 0 {
			maxAge = 99
		}
		opts.Filters.AgeRange = &models.AgeRange{Min: minAge, Max: maxAge}
	}

	return opts
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
