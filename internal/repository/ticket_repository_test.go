package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestBuildTicketWhere_Empty(t *testing.T) {
	where, args := buildTicketWhere(TicketFilter{})
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)
}

func TestBuildTicketWhere_AllFilters(t *testing.T) {
	company := int64(7)
	assignee := int64(3)
	search := "  Printer "

	where, args := buildTicketWhere(TicketFilter{
		CompanyID:      &company,
		AssignedUserID: &assignee,
		Statuses:       []domain.TicketStatus{domain.TicketStatusCreated, domain.TicketStatusAssumed},
		Priorities:     []domain.TicketPriority{domain.TicketPriorityHigh},
		Categories:     []domain.TicketCategory{domain.TicketCategoryPrinter},
		SearchTerm:     &search,
	})

	assert.Equal(t,
		"1=1 AND company_id=$1 AND assigned_user_id=$2 AND status IN ($3,$4) AND priority IN ($5) AND category IN ($6) AND (LOWER(title) LIKE $7 ESCAPE '\\' OR LOWER(description) LIKE $7 ESCAPE '\\')",
		where)
	assert.Equal(t, []any{int64(7), int64(3), "created", "assumed", "high", "printer", "%printer%"}, args)
}

func TestBuildTicketWhere_SearchEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"%":          `%\%%`,
		"disk_1":     `%disk\_1%`,
		`C:\Temp`:    `%c:\\temp%`,
		"50% OFF_":   `%50\% off\_%`,
		"plain text": "%plain text%",
	}
	for term, want := range cases {
		term := term
		_, args := buildTicketWhere(TicketFilter{SearchTerm: &term})
		assert.Equal(t, []any{want}, args, term)
	}
}

func TestBuildTicketWhere_BlankSearchIgnored(t *testing.T) {
	blank := "   "
	where, args := buildTicketWhere(TicketFilter{SearchTerm: &blank})
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)
}

func TestRecipientClause(t *testing.T) {
	clause, arg, err := recipientClause(domain.CompanyRecipient(5), 2)
	assert.NoError(t, err)
	assert.Equal(t, "company_id=$2 AND user_id IS NULL", clause)
	assert.Equal(t, int64(5), arg)

	clause, arg, err = recipientClause(domain.UserRecipient(9), 1)
	assert.NoError(t, err)
	assert.Equal(t, "user_id=$1 AND company_id IS NULL", clause)
	assert.Equal(t, int64(9), arg)

	_, _, err = recipientClause(domain.Recipient{}, 1)
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}
