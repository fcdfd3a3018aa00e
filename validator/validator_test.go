package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchema struct {
	tables  []string
	columns map[string][]string
}

func (f fakeSchema) GetValidTables() []string { return f.tables }
func (f fakeSchema) GetValidColumns(table string) []string {
	return f.columns[table]
}

func testSchema() fakeSchema {
	return fakeSchema{
		tables: []string{"amazon_sales", "customers"},
		columns: map[string][]string{
			"amazon_sales": {"Amount", "Category", "Date", "Qty"},
			"customers":    {"id", "name", "email"},
		},
	}
}

func newTestValidator() *Validator {
	return New(Config{MaxRetries: 3, DefaultLimit: 100, MaxLimit: 1000}, testSchema())
}

func TestValidate_HappyPath(t *testing.T) {
	v := newTestValidator()
	res, err := v.Validate(context.Background(), "SELECT Amount, Category FROM amazon_sales", 0)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Contains(t, res.CorrectedSQL, "LIMIT 100")
	assert.Empty(t, res.Errors)
}

func TestValidate_RejectsWriteStatements(t *testing.T) {
	v := newTestValidator()
	res, err := v.Validate(context.Background(), "DELETE FROM amazon_sales", 0)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.NotEmpty(t, res.Errors)
}

func TestValidate_RejectsStackedDropStatement(t *testing.T) {
	v := newTestValidator()
	res, err := v.Validate(context.Background(), "SELECT * FROM amazon_sales; DROP TABLE amazon_sales;", 0)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
}

func TestValidate_UnknownTableSuggestsClosestMatch(t *testing.T) {
	v := newTestValidator()
	res, err := v.Validate(context.Background(), "SELECT * FROM amazon_sale", 0)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "amazon_sales")
}

func TestValidate_UnknownColumnSuggestsClosestMatch(t *testing.T) {
	v := newTestValidator()
	res, err := v.Validate(context.Background(), "SELECT Amout FROM amazon_sales", 0)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "Amount")
}

func TestValidate_ExceedingMaxLimitIsCapped(t *testing.T) {
	v := newTestValidator()
	res, err := v.Validate(context.Background(), "SELECT Amount FROM amazon_sales LIMIT 5000", 0)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Contains(t, res.CorrectedSQL, "LIMIT 1000")
	assert.NotEmpty(t, res.Warnings)
}

func TestValidate_RetryBudgetExhausted(t *testing.T) {
	v := newTestValidator()
	res, err := v.Validate(context.Background(), "SELECT Amount FROM amazon_sales", 4)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors[0], "maximum retry attempts")
}

func TestValidate_EmptySQL(t *testing.T) {
	v := newTestValidator()
	res, err := v.Validate(context.Background(), "   ", 0)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
}
