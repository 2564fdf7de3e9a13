package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ldevaal/wiredns/internal/api/models"
	"github.com/ldevaal/wiredns/internal/dns"
	"github.com/ldevaal/wiredns/internal/resolver"
)

// resolveTimeout bounds one lookup; the resolver's own retry schedule
// runs inside it.
const resolveTimeout = 30 * time.Second

// Resolve performs one DNS lookup.
//
// Query parameters: name (required), type (mnemonic, default A), class
// (IN/CH/ANY, default IN), mode (query, search, or recursive; default
// query).
func (h *Handler) Resolve(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing required parameter: name"})
		return
	}

	qtype, ok := dns.TypeFromMnemonic(strings.ToUpper(c.DefaultQuery("type", "A")))
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("unknown record type %q", c.Query("type"))})
		return
	}
	qclass, err := parseClass(c.DefaultQuery("class", "IN"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	mode := strings.ToLower(c.DefaultQuery("mode", "query"))

	r, err := h.resolverFactory()()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), resolveTimeout)
	defer cancel()

	var resp *dns.Message
	switch mode {
	case "query":
		resp, err = r.Query(ctx, name, qtype, qclass)
	case "search":
		resp, err = r.Search(ctx, name, qtype, qclass)
	case "recursive":
		resp, err = r.QueryRecursive(ctx, name, qtype)
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("unknown mode %q", mode)})
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, resolver.ErrNoResponse) || errors.Is(err, resolver.ErrReferralLoop) {
			status = http.StatusBadGateway
		}
		c.JSON(status, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.ResolveResponse{
		Name:          name,
		Type:          dns.TypeMnemonic(qtype),
		RCode:         int(resp.Header.RCode()),
		Authoritative: resp.Header.Authoritative(),
		Truncated:     resp.Header.Truncated(),
		Answers:       toRecords(resp.Answers),
		Authorities:   toRecords(resp.Authorities),
		Additionals:   toRecords(resp.Additionals),
	})
}

func parseClass(s string) (dns.RecordClass, error) {
	switch strings.ToUpper(s) {
	case "IN":
		return dns.ClassIN, nil
	case "CH":
		return dns.ClassCH, nil
	case "ANY":
		return dns.ClassANY, nil
	}
	return 0, fmt.Errorf("unknown record class %q", s)
}

func toRecords(recs []dns.Record) []models.ResourceRecord {
	out := make([]models.ResourceRecord, 0, len(recs))
	for _, rec := range recs {
		h := rec.Header()
		out = append(out, models.ResourceRecord{
			Name: h.Name.String(),
			TTL:  h.TTL,
			Type: dns.TypeMnemonic(rec.Type()),
			Data: rec.RDataString(),
		})
	}
	return out
}
