package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sawtooth/internal/domain"
	"sawtooth/internal/repos"
	"sawtooth/internal/sourcing"
	"sawtooth/internal/validate"
)

type failingGenerator struct{ calls int }

func (g *failingGenerator) Generate(context.Context, int) ([]sourcing.Raw, error) {
	g.calls++
	return nil, errors.New("model unavailable")
}

func newSourcing(db *sqlx.DB, gen sourcing.Generator) *SourcingService {
	s := NewSourcingService(db, repos.NewOpportunityRepo(db), repos.NewProductRepo(db), gen)
	s.Clock = fixed(t0)
	return s
}

func TestEnsureFillsQueue(t *testing.T) {
	db := newDB(t)
	gen := &failingGenerator{}
	svc := newSourcing(db, gen)

	opps, err := svc.Ensure(context.Background(), QueueSize)
	require.NoError(t, err)
	assert.Len(t, opps, QueueSize)
	assert.Equal(t, 1, gen.calls)
	for _, o := range opps {
		assert.GreaterOrEqual(t, o.ExpectedMarginPct, 40)
		assert.GreaterOrEqual(t, o.SuggestedPriceCents*10, o.MaxBuyPriceCents*16)
	}

	again, err := svc.Ensure(context.Background(), QueueSize)
	require.NoError(t, err)
	assert.Equal(t, opps, again)
	assert.Equal(t, 1, gen.calls)
}

func TestAcceptCreatesDraft(t *testing.T) {
	db := newDB(t)
	svc := newSourcing(db, nil)
	opps, err := svc.Ensure(context.Background(), 1)
	require.NoError(t, err)
	opp := opps[0]
	seed(t, db, domain.Product{ID: validate.Slug(opp.Title), Title: "taken"})

	p, err := svc.Accept(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Equal(t, validate.Slug(opp.Title)+"-2", p.ID)
	assert.Equal(t, domain.StatusDraft, p.Status)
	assert.Equal(t, 1, p.Inventory)
	assert.Equal(t, opp.SuggestedPriceCents, p.PriceCents)
	assert.Equal(t, opp.MaxBuyPriceCents, p.BuyPriceMaxCents)
	assert.Contains(t, []string(p.Tags), "ai-draft")
	assert.Contains(t, p.Description, "AI draft listing for "+opp.Title)

	n, err := svc.Opps.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Accept(context.Background(), opp.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Accept(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDecline(t *testing.T) {
	db := newDB(t)
	svc := newSourcing(db, nil)
	opps, err := svc.Ensure(context.Background(), 2)
	require.NoError(t, err)

	require.NoError(t, svc.Decline(context.Background(), opps[0].ID))
	assert.ErrorIs(t, svc.Decline(context.Background(), opps[0].ID), domain.ErrNotFound)

	n, err := svc.Opps.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAcceptRollsBackWhenInsertFails(t *testing.T) {
	mock, raw := newMock(t)
	db := sqlx.NewDb(raw, "sqlite")
	svc := newSourcing(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM ai_opportunities WHERE opp_id").
		WithArgs("opp_1").
		WillReturnRows(sqlmock.NewRows([]string{
			"opp_id", "category", "title", "max_buy_price_cents", "suggested_price_cents", "expected_margin_pct",
			"search_keywords", "buy_links", "local_pickup", "condition_checklist", "notes", "created_at",
		}).AddRow("opp_1", "shoes", "Dr Martens 1460", int64(4500), int64(11500), int64(61), `["docs"]`, "[]", "[]", "[]", "", t0))
	mock.ExpectExec("DELETE FROM ai_opportunities").WithArgs("opp_1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO products").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), "opp_1")
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}
