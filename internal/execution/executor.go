// Package execution implements the Query Executor (C8): the SPARQL 1.1
// Protocol HTTP client, format negotiation, result normalization, and
// error classification (via internal/retry's Classify), grounded in the
// teacher's raw net/http client idiom.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"sparql-agent-go/internal/retry"
	"sparql-agent-go/pkg/types"
)

// Executor implements interfaces.Executor.
type Executor struct {
	client      *http.Client
	logger      *zap.Logger
	userAgent   string
	retryOn405  bool
}

// NewExecutor builds an Executor sharing one HTTP client/connection pool,
// per spec §5 "Shared resources".
func NewExecutor(client *http.Client, userAgent string, logger *zap.Logger) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	if userAgent == "" {
		userAgent = "sparql-agent-go/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, logger: logger, userAgent: userAgent, retryOn405: true}
}

// Execute runs one query against one endpoint and returns a normalized
// QueryResult, or an ErrorContext on failure (spec §4.8).
func (e *Executor) Execute(ctx context.Context, query *types.Query, endpoint types.Endpoint) (*types.QueryResult, *types.ErrorContext) {
	start := time.Now()

	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, body, errCtx := e.post(reqCtx, query, endpoint)
	if errCtx != nil && e.retryOn405 && errCtx.Metadata != nil && errCtx.Metadata["http_status"] == http.StatusMethodNotAllowed {
		resp, body, errCtx = e.get(reqCtx, query, endpoint)
	}
	if errCtx != nil {
		return nil, errCtx
	}
	defer resp.Body.Close()

	result, parseErr := e.parseResult(query.Type, resp, body)
	if parseErr != nil {
		return nil, parseErr
	}
	result.ExecutionTime = time.Since(start)
	result.BytesReceived = int64(len(body))
	return result, nil
}

func (e *Executor) post(ctx context.Context, query *types.Query, endpoint types.Endpoint) (*http.Response, []byte, *types.ErrorContext) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader([]byte(query.Text)))
	if err != nil {
		return nil, nil, retry.Classify(err.Error(), 0)
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", acceptHeader(query.Type))
	req.Header.Set("User-Agent", e.userAgent)
	applyAuth(req, endpoint)

	return e.do(req)
}

func (e *Executor) get(ctx context.Context, query *types.Query, endpoint types.Endpoint) (*http.Response, []byte, *types.ErrorContext) {
	url := endpoint.URL + "?query=" + escapeQueryParam(query.Text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, retry.Classify(err.Error(), 0)
	}
	req.Header.Set("Accept", acceptHeader(query.Type))
	req.Header.Set("User-Agent", e.userAgent)
	applyAuth(req, endpoint)

	return e.do(req)
}

func (e *Executor) do(req *http.Request) (*http.Response, []byte, *types.ErrorContext) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, retry.Classify(err.Error(), 0)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, nil, retry.Classify(err.Error(), 0)
	}

	if resp.StatusCode >= 400 {
		errCtx := retry.Classify(string(body), resp.StatusCode)
		if errCtx.Metadata == nil {
			errCtx.Metadata = map[string]interface{}{}
		}
		errCtx.Metadata["http_status"] = resp.StatusCode
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if secs, convErr := strconv.Atoi(retryAfter); convErr == nil {
				errCtx.Metadata["retry_after"] = secs
			}
		}
		return resp, body, errCtx
	}

	// Re-wrap body so callers that expect resp.Body to still be readable
	// (defensive against accidental double-read) get a fresh reader.
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, body, nil
}

func applyAuth(req *http.Request, endpoint types.Endpoint) {
	if endpoint.Auth == nil {
		return
	}
	switch endpoint.Auth.Kind {
	case types.AuthBasic:
		req.SetBasicAuth(endpoint.Auth.Username, endpoint.Auth.Password)
	case types.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+endpoint.Auth.Token)
	}
}

func acceptHeader(t types.QueryType) string {
	switch t {
	case types.QueryConstruct, types.QueryDescribe:
		return "application/rdf+xml, text/turtle;q=0.9"
	default:
		return "application/sparql-results+json"
	}
}

func escapeQueryParam(q string) string {
	var b strings.Builder
	for _, r := range q {
		switch {
		case r == ' ':
			b.WriteString("+")
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteString("%")
			b.WriteString(hexByte(byte(r)))
		}
	}
	return b.String()
}

func hexByte(b byte) string {
	const hex = "0123456789ABCDEF"
	return string([]byte{hex[b>>4], hex[b&0xF]})
}

type sparqlResultsDoc struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]rawTerm `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean"`
}

type rawTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang"`
	Datatype string `json:"datatype"`
}

func (e *Executor) parseResult(qt types.QueryType, resp *http.Response, body []byte) (*types.QueryResult, *types.ErrorContext) {
	contentType := resp.Header.Get("Content-Type")

	switch qt {
	case types.QueryConstruct, types.QueryDescribe:
		return &types.QueryResult{
			Status:    types.StatusSuccess,
			Variables: []string{"graph"},
			Bindings: []types.Binding{{
				"graph": types.TypedValue{Kind: types.KindLiteral, Value: string(body), Datatype: contentType},
			}},
			RowCount: 1,
		}, nil
	}

	var doc sparqlResultsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, retry.Classify("parse error: malformed SPARQL results JSON: "+err.Error(), 0)
	}

	if qt == types.QueryAsk {
		val := false
		if doc.Boolean != nil {
			val = *doc.Boolean
		}
		return &types.QueryResult{
			Status:    types.StatusSuccess,
			Variables: []string{"boolean"},
			Bindings: []types.Binding{{
				"boolean": types.TypedValue{Kind: types.KindLiteral, Value: strconv.FormatBool(val), Datatype: "http://www.w3.org/2001/XMLSchema#boolean"},
			}},
			RowCount: 1,
		}, nil
	}

	bindings := make([]types.Binding, 0, len(doc.Results.Bindings))
	for _, row := range doc.Results.Bindings {
		b := make(types.Binding, len(row))
		for varName, term := range row {
			b[varName] = decodeTerm(term)
		}
		bindings = append(bindings, b)
	}

	return &types.QueryResult{
		Status:    types.StatusSuccess,
		Variables: doc.Head.Vars,
		Bindings:  bindings,
		RowCount:  len(bindings),
	}, nil
}

// decodeTerm maps one SPARQL results JSON term onto a TypedValue per the
// spec §4.8/§3 rules (type in uri|literal|typed-literal|bnode).
func decodeTerm(t rawTerm) types.TypedValue {
	switch t.Type {
	case "uri":
		return types.TypedValue{Kind: types.KindIRI, Value: t.Value}
	case "bnode":
		return types.TypedValue{Kind: types.KindBlankNode, Value: t.Value}
	case "typed-literal":
		return types.TypedValue{Kind: types.KindLiteral, Value: t.Value, Datatype: t.Datatype}
	default: // "literal"
		tv := types.TypedValue{Kind: types.KindLiteral, Value: t.Value}
		if t.Lang != "" {
			tv.Language = t.Lang
			tv.Datatype = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
		} else if t.Datatype != "" {
			tv.Datatype = t.Datatype
		}
		return tv
	}
}
