package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/recordkeeper/api/internal/db"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/models"
)

// orderByAllowList maps a client-facing orderBy field to the store column
// it actually sorts on.
var orderByAllowList = map[string]string{
	"createdAt": "created_at",
}

// Engine compiles and executes DNF filter queries against one format.
type Engine struct {
	recordDB              *db.RecordDB
	maxPaginationSize     int
	defaultPaginationSize int
}

// NewEngine builds an Engine bounded by the configured pagination limits.
func NewEngine(recordDB *db.RecordDB, maxPaginationSize, defaultPaginationSize int) *Engine {
	return &Engine{recordDB: recordDB, maxPaginationSize: maxPaginationSize, defaultPaginationSize: defaultPaginationSize}
}

// Run validates req against format's schema, compiles it to one
// parameterized query, and executes it. returnCount controls whether
// itemCount/pageCount are computed (an extra COUNT query).
func (e *Engine) Run(ctx context.Context, format *models.Format, req Request, returnCount bool) (*Result, error) {
	whereSQL, whereArgs, err := compileFilter(format, req.Query, req.UploadSession)
	if err != nil {
		return nil, err
	}

	orderBySQL, err := compileOrderBy(req.OrderBy)
	if err != nil {
		return nil, err
	}

	page, perPage := e.normalizePagination(req.Page, req.PerPage)
	if perPage > e.maxPaginationSize {
		return nil, apierrors.BadRequest(fmt.Sprintf("perPage must not exceed %d", e.maxPaginationSize))
	}

	records, err := e.recordDB.QueryRecords(ctx, format.ID, whereSQL, whereArgs, orderBySQL, perPage, page*perPage)
	if err != nil {
		return nil, apierrors.StorageError(err)
	}

	items := make([]map[string]any, len(records))
	for i, rec := range records {
		items[i] = rec.Data
	}

	result := &Result{Items: items, Page: page, PerPage: perPage}
	if returnCount {
		count, err := e.recordDB.CountRecords(ctx, format.ID, whereSQL, whereArgs)
		if err != nil {
			return nil, apierrors.StorageError(err)
		}
		pageCount := (count + int64(perPage) - 1) / int64(perPage)
		result.ItemCount = &count
		result.PageCount = &pageCount
	}
	return result, nil
}

// Compile validates req and compiles it to the WHERE fragment and bound
// arguments the CSV streaming pipeline partitions against.
func Compile(format *models.Format, req Request) (string, []interface{}, error) {
	return compileFilter(format, req.Query, req.UploadSession)
}

func (e *Engine) normalizePagination(page, perPage int) (int, int) {
	if page < 0 {
		page = 0
	}
	if perPage <= 0 {
		perPage = e.defaultPaginationSize
	}
	return page, perPage
}

func compileOrderBy(orderBy string) (string, error) {
	if orderBy == "" {
		return "ORDER BY created_at ASC", nil
	}
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")

	column, ok := orderByAllowList[field]
	if !ok {
		return "", apierrors.BadRequest(fmt.Sprintf("orderBy %q is not allowed", orderBy))
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s", column, direction), nil
}

func compileFilter(format *models.Format, clauses []Clause, session SessionFilter) (string, []interface{}, error) {
	var args []interface{}
	var orParts []string

	for _, clause := range clauses {
		var andParts []string
		for _, pred := range clause.Args {
			sqlFrag, predArgs, err := compilePredicate(format, pred, len(args)+2) // +2: $1 is the caller's leading formatID placeholder
			if err != nil {
				return "", nil, err
			}
			andParts = append(andParts, sqlFrag)
			args = append(args, predArgs...)
		}
		if len(andParts) > 0 {
			orParts = append(orParts, "("+strings.Join(andParts, " AND ")+")")
		}
	}

	var sb strings.Builder
	if len(orParts) > 0 {
		sb.WriteString(" AND (")
		sb.WriteString(strings.Join(orParts, " OR "))
		sb.WriteString(")")
	}

	if session.CreatedAtGte != nil {
		t, err := time.Parse(time.RFC3339, *session.CreatedAtGte)
		if err != nil {
			return "", nil, apierrors.BadRequest("uploadSession.createdAtGte must be RFC3339")
		}
		args = append(args, t)
		sb.WriteString(fmt.Sprintf(" AND upload_session_id IN (SELECT id FROM upload_session WHERE created_at >= $%d)", len(args)+1))
	}
	if session.CreatedAtLte != nil {
		t, err := time.Parse(time.RFC3339, *session.CreatedAtLte)
		if err != nil {
			return "", nil, apierrors.BadRequest("uploadSession.createdAtLte must be RFC3339")
		}
		args = append(args, t)
		sb.WriteString(fmt.Sprintf(" AND upload_session_id IN (SELECT id FROM upload_session WHERE created_at <= $%d)", len(args)+1))
	}

	return sb.String(), args, nil
}

// compilePredicate compiles one predicate to a SQL fragment. nextArg is the
// placeholder index for the column's JSON key, bound as a parameter like
// every other value here — column names are validated against the format's
// own schema, but nothing about their text reaches the query as a raw SQL
// literal.
func compilePredicate(format *models.Format, pred Predicate, nextArg int) (string, []interface{}, error) {
	if !pred.Op.valid() {
		return "", nil, apierrors.BadRequest(fmt.Sprintf("unknown comparison operator %q", pred.Op))
	}
	col, ok := format.Column(pred.Column)
	if !ok {
		return "", nil, apierrors.BadRequest(fmt.Sprintf("column %q is not declared in this format", pred.Column))
	}
	if pred.Op.stringOnly() && col.Kind != models.KindString {
		return "", nil, apierrors.BadRequest(fmt.Sprintf("operator %q only applies to String columns", pred.Op))
	}

	keyArg := nextArg
	valueArg := nextArg + 1
	jsonExpr := fmt.Sprintf("data->>$%d", keyArg)
	if col.Kind == models.KindNumber {
		jsonExpr = fmt.Sprintf("(%s)::numeric", jsonExpr)
	}

	switch pred.Op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		value, err := coerceScalar(col, pred.CompareAgainst)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s $%d", jsonExpr, sqlOperator(pred.Op), valueArg), []interface{}{pred.Column, value}, nil

	case OpContains:
		s, ok := pred.CompareAgainst.(string)
		if !ok {
			return "", nil, apierrors.BadRequest(fmt.Sprintf("column %q: contains requires a string value", pred.Column))
		}
		return fmt.Sprintf("%s LIKE '%%' || $%d || '%%'", jsonExpr, valueArg), []interface{}{pred.Column, s}, nil

	case OpStartsWith:
		s, ok := pred.CompareAgainst.(string)
		if !ok {
			return "", nil, apierrors.BadRequest(fmt.Sprintf("column %q: startsWith requires a string value", pred.Column))
		}
		return fmt.Sprintf("%s LIKE $%d || '%%'", jsonExpr, valueArg), []interface{}{pred.Column, s}, nil

	case OpEndsWith:
		s, ok := pred.CompareAgainst.(string)
		if !ok {
			return "", nil, apierrors.BadRequest(fmt.Sprintf("column %q: endsWith requires a string value", pred.Column))
		}
		return fmt.Sprintf("%s LIKE '%%' || $%d", jsonExpr, valueArg), []interface{}{pred.Column, s}, nil

	case OpIn, OpNotIn:
		list, ok := pred.CompareAgainst.([]interface{})
		if !ok {
			return "", nil, apierrors.BadRequest(fmt.Sprintf("column %q: %s requires a list value", pred.Column, pred.Op))
		}
		arrayValue, err := coerceArray(col, list)
		if err != nil {
			return "", nil, err
		}
		negate := ""
		if pred.Op == OpNotIn {
			negate = "NOT "
		}
		return fmt.Sprintf("%s%s = ANY($%d)", negate, jsonExpr, valueArg), []interface{}{pred.Column, arrayValue}, nil
	}

	return "", nil, apierrors.BadRequest(fmt.Sprintf("unknown comparison operator %q", pred.Op))
}

func sqlOperator(op ComparisonOp) string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	}
	return "="
}

func coerceScalar(col models.Column, value any) (interface{}, error) {
	switch col.Kind {
	case models.KindNumber:
		n, ok := value.(float64)
		if !ok {
			return nil, apierrors.BadRequest(fmt.Sprintf("column %q: expects a numeric compareAgainst", col.Name))
		}
		return n, nil
	case models.KindString:
		s, ok := value.(string)
		if !ok {
			return nil, apierrors.BadRequest(fmt.Sprintf("column %q: expects a string compareAgainst", col.Name))
		}
		return s, nil
	}
	return nil, apierrors.BadRequest(fmt.Sprintf("column %q has an unknown kind", col.Name))
}

func coerceArray(col models.Column, list []interface{}) (interface{}, error) {
	switch col.Kind {
	case models.KindNumber:
		values := make([]float64, len(list))
		for i, v := range list {
			n, ok := v.(float64)
			if !ok {
				return nil, apierrors.BadRequest(fmt.Sprintf("column %q: in/notIn element %d must be numeric", col.Name, i))
			}
			values[i] = n
		}
		return pq.Array(values), nil
	case models.KindString:
		values := make([]string, len(list))
		for i, v := range list {
			s, ok := v.(string)
			if !ok {
				return nil, apierrors.BadRequest(fmt.Sprintf("column %q: in/notIn element %d must be a string", col.Name, i))
			}
			values[i] = s
		}
		return pq.StringArray(values), nil
	}
	return nil, apierrors.BadRequest(fmt.Sprintf("column %q has an unknown kind", col.Name))
}
