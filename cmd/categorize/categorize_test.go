package categorize

import (
	"bytes"
	"context"
	"testing"

	"fjacquet/statement-import/internal/categorizer"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
	"fjacquet/statement-import/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier(mock *store.MockMerchantStore) *categorizer.Classifier {
	return categorizer.NewClassifier(mock, nil, categorizer.Options{}, logging.NewMockLogger())
}

func TestCategorizeCommand_Metadata(t *testing.T) {
	assert.Equal(t, "categorize", Cmd.Use)
	assert.Contains(t, Cmd.Short, "Categorize a merchant")
	assert.NotNil(t, Cmd.RunE)
}

func TestCategorizeCommand_Flags(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"merchant", "m", ""},
		{"income", "i", "false"},
		{"amount", "a", ""},
		{"date", "t", ""},
		{"remember", "r", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := Cmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
}

func TestRun(t *testing.T) {
	mock := &store.MockMerchantStore{
		Categories:     []models.CategoryConfig{{Name: "Food", Keywords: []string{"cafe"}}, {Name: "Salary", Kind: models.CategoryKindIncome}},
		IncomeMappings: map[string]string{"acme corp": "Salary"},
	}
	c := newClassifier(mock)

	tests := []struct {
		name string
		o    Options
		want string
	}{
		{"keyword", Options{Merchant: "Cafe Luna", Amount: "-4.50"}, "Cafe Luna: Food (via Keyword)"},
		{"cache", Options{Merchant: "ACME Corp", Income: true, Date: "2024-02-01"}, "ACME Corp: Salary (via MerchantCache)"},
		{"unknown", Options{Merchant: "Hardware Store"}, "Hardware Store: no category (service unavailable)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, Run(context.Background(), c, tt.o, &out))
			assert.Equal(t, tt.want+"\n", out.String())
		})
	}
}

func TestRun_Remember(t *testing.T) {
	mock := &store.MockMerchantStore{}
	var out bytes.Buffer

	err := Run(context.Background(), newClassifier(mock), Options{Merchant: "Book Nook", Remember: " leisure "}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Remembered Book Nook (expense) as leisure\n", out.String())
	assert.Equal(t, []store.RememberCall{{Key: "book nook", Kind: models.KindExpense, Category: "leisure"}}, mock.RememberCalls())
}

func TestRun_Validation(t *testing.T) {
	c := newClassifier(&store.MockMerchantStore{})
	tests := []struct {
		name string
		o    Options
	}{
		{"missing merchant", Options{Merchant: "  "}},
		{"bad amount", Options{Merchant: "x", Amount: "ten"}},
		{"bad date", Options{Merchant: "x", Date: "31/01/2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Run(context.Background(), c, tt.o, &bytes.Buffer{})
			assert.ErrorIs(t, err, parsererror.ErrValidation)
		})
	}
}
