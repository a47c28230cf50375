package handler

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/niels/minihttpd/pkg/protocol"
	"github.com/niels/minihttpd/pkg/stats"
)

// CalcPath is the path of the addition endpoint
const CalcPath = "/calc"

// ErrMalformedQuery is returned for queries not of the form a=<int>&b=<int>
var ErrMalformedQuery = errors.New("malformed calc query")

// ParseCalcQuery parses exactly "a=<int>&b=<int>". Operands are 32-bit
// signed integers so their sum cannot overflow.
func ParseCalcQuery(query string) (int64, int64, error) {
	rest, ok := strings.CutPrefix(query, "a=")
	if !ok {
		return 0, 0, ErrMalformedQuery
	}
	aStr, bStr, ok := strings.Cut(rest, "&b=")
	if !ok {
		return 0, 0, ErrMalformedQuery
	}

	a, err := strconv.ParseInt(aStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: a: %v", ErrMalformedQuery, err)
	}
	b, err := strconv.ParseInt(bStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: b: %v", ErrMalformedQuery, err)
	}
	return a, b, nil
}

// RenderCalc renders a full response, header included, for a + b
func RenderCalc(a, b int64) string {
	return protocol.HTMLHeader + fmt.Sprintf(
		"<html><body><h1>Calc Result</h1><p>%d + %d = %d</p></body></html>",
		a, b, a+b)
}

// CalcHandler adds the two query operands
type CalcHandler struct {
	stats *stats.Registry
}

// NewCalcHandler creates a calc handler that records sent bytes in registry
func NewCalcHandler(registry *stats.Registry) *CalcHandler {
	return &CalcHandler{stats: registry}
}

// Serve answers query, the text after '?', with the sum page or a 400
func (h *CalcHandler) Serve(w io.Writer, query string) (int, error) {
	a, b, err := ParseCalcQuery(query)
	if err != nil {
		return protocol.WriteBadRequest(w)
	}

	n, err := io.WriteString(w, RenderCalc(a, b))
	h.stats.AddSent(n)
	if err != nil {
		return protocol.StatusOK, fmt.Errorf("failed to send calc result: %w", err)
	}
	return protocol.StatusOK, nil
}
