package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar day or a full RFC3339 timestamp
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, registry.NewValidationError("DATE_INVALID", "Date invalide: "+s)
	}
	return t, nil
}

func pageRequest(c *gin.Context) registry.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return registry.PageRequest{Page: page, Limit: limit}
}

func listOptions(c *gin.Context) registry.ListOptions {
	return registry.ListOptions{
		Page:            pageRequest(c),
		Query:           strings.TrimSpace(c.Query("query")),
		IncludeInactive: queryBool(c, "includeInactive"),
	}
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}

// queryOptionalBool returns nil when the parameter is absent or unparsable
func queryOptionalBool(c *gin.Context, key string) *bool {
	v, present := c.GetQuery(key)
	if !present {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := parseDate(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt64(c *gin.Context, key string) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, registry.NewValidationError("INVALID_PARAMETER", "Paramètre invalide: "+key)
	}
	return n, nil
}

// queryIDs parses a comma separated id list such as serviceIds=1,2,3
func queryIDs(c *gin.Context, key string) ([]int64, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, registry.NewValidationError("INVALID_PARAMETER", "Paramètre invalide: "+key)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, registry.NewValidationError("INVALID_ID", "Identifiant invalide")
	}
	return id, nil
}

func optionalDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
