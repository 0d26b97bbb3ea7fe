package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"legaljudge-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBrief = `IN THE SUPERIOR COURT OF THE STATE OF VERMONT
Case No. 23-CV-0481

PLAINTIFF: John Doe
DEFENDANT: Jane Smith (Landlord)

COMPLAINT FOR BREACH OF IMPLIED WARRANTY OF HABITABILITY

FACTS:
1. Plaintiff entered into a residential lease agreement with Defendant on January 1, 2023.
2. Defendant failed to make necessary repairs despite repeated requests.

PROCEDURAL HISTORY:
The trial court granted summary judgment
for the Defendant.

LEGAL ISSUE:
Whether the Defendant breached the implied warranty of habitability
by failing to maintain the premises.

RELIEF SOUGHT:
Damages.`

func TestDeriveCaseContext(t *testing.T) {
	cc := DeriveCaseContext(sampleBrief)

	assert.Equal(t, "John Doe", cc.Petitioner)
	assert.Equal(t, "Jane Smith (Landlord)", cc.Respondent)
	assert.Equal(t, "No. 23-CV-0481", cc.CaseNumber)
	assert.Equal(t, "IN THE SUPERIOR COURT OF THE STATE OF VERMONT", cc.LowerCourt)
	assert.Equal(t, "Whether the Defendant breached the implied warranty of habitability by failing to maintain the premises.", cc.Issue)
	require.NotNil(t, cc.ProceduralHistory)
	assert.Equal(t, "The trial court granted summary judgment for the Defendant.", *cc.ProceduralHistory)
	assert.Equal(t, sampleBrief, cc.Facts)
}

func TestDeriveIssueFallbacks(t *testing.T) {
	cc := DeriveCaseContext("The petition asks whether nothing. The question is Whether the statute applies to tenants? More text.")
	assert.Equal(t, "Whether the statute applies to tenants?", cc.Issue)

	cc = DeriveCaseContext("A brief with no question at all")
	assert.Equal(t, DefaultIssue, cc.Issue)
	assert.Nil(t, cc.ProceduralHistory)
	assert.Empty(t, cc.Petitioner)
	assert.Empty(t, cc.CaseNumber)
}

func TestDeriveCaseContextCapsFacts(t *testing.T) {
	text := strings.Repeat("é", models.MaxFactsLength+50)
	cc := DeriveCaseContext(text)
	assert.Equal(t, models.MaxFactsLength, utf8.RuneCountInString(cc.Facts))
}

func TestDeriveCaseContextEmpty(t *testing.T) {
	cc := DeriveCaseContext("")
	assert.Empty(t, cc.Facts)
	assert.Equal(t, DefaultIssue, cc.Issue)
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "a b c", SearchQuery("  a\x00\n\n b\t\x07c  "))
	assert.Empty(t, SearchQuery(""))

	long := SearchQuery(strings.Repeat("word ", 1000))
	assert.LessOrEqual(t, utf8.RuneCountInString(long), models.MaxQueryLength)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
	assert.Equal(t, "", truncateRunes("héllo", 0))
}
