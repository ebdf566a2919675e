package subgraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/testutil"
)

const testCS ir.ContentStreamID = "cs-1"

var (
	de = testutil.Point("de")
	en = testutil.Point("en")
)

// graphFixture writes projection rows directly.
type graphFixture struct {
	t  *testing.T
	db *sql.DB
}

func (f *graphFixture) exec(query string, args ...any) {
	f.t.Helper()
	_, err := f.db.ExecContext(context.Background(), query, args...)
	require.NoError(f.t, err)
}

func (f *graphFixture) node(anchor, id, nodeType string, origin dimension.DimensionSpacePoint, classification ir.NodeAggregateClassification, name, properties string) {
	f.exec(`INSERT INTO node VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		anchor, id, origin.String(), origin.Hash(), nodeType, classification, name, properties)
}

func (f *graphFixture) edge(parent string, p dimension.DimensionSpacePoint, children ...string) {
	data, err := json.Marshal(children)
	require.NoError(f.t, err)
	f.exec(`INSERT INTO hierarchy_hyperrelation VALUES (?, ?, ?, ?, ?)`, testCS, parent, p.Hash(), p.String(), string(data))
}

func (f *graphFixture) restrict(p dimension.DimensionSpacePoint, origin string, affected ...string) {
	data, err := json.Marshal(affected)
	require.NoError(f.t, err)
	f.exec(`INSERT INTO restriction_hyperrelation VALUES (?, ?, ?, ?)`, testCS, p.Hash(), origin, string(data))
}

func (f *graphFixture) reference(source, name string, position int, target, properties string) {
	f.exec(`INSERT INTO reference_relation VALUES (?, ?, ?, ?, ?)`, source, name, position, target, properties)
}

func title(s string) string {
	return `{"title":{"value":"` + s + `","type":"string"}}`
}

// newTestGraph builds, in both "de" and "en":
//
//	sites (root)
//	└── home
//	    ├── main (tethered)
//	    │   └── intro
//	    ├── about      (own "en" variant)
//	    └── contact    (disabled in "de")
//
// about references contact and home in "de", home in "en".
func newTestGraph(t *testing.T) *ContentGraph {
	s := testutil.OpenStore(t)
	f := &graphFixture{t: t, db: s.DB()}

	f.node("a-sites", "sites", "Acme:Sites", dimension.EmptyPoint(), ir.ClassificationRoot, "", `{}`)
	f.node("a-home", "home", "Acme:Page", de, ir.ClassificationRegular, "home", title("Home"))
	f.node("a-main", "main", "Acme:ContentCollection", de, ir.ClassificationTethered, "main", `{}`)
	f.node("a-intro", "intro", "Acme:Text", de, ir.ClassificationRegular, "intro",
		`{"text":{"value":"Hello","type":"string"},"views":{"value":3,"type":"int"}}`)
	f.node("a-about", "about", "Acme:Page", de, ir.ClassificationRegular, "about", title("About us"))
	f.node("a-about-en", "about", "Acme:Page", en, ir.ClassificationRegular, "about", title("About"))
	f.node("a-contact", "contact", "Acme:Page", de, ir.ClassificationRegular, "contact", title("Contact"))

	for _, p := range []dimension.DimensionSpacePoint{de, en} {
		f.edge(string(ir.RootRelationAnchorPoint), p, "a-sites")
		f.edge("a-sites", p, "a-home")
		f.edge("a-main", p, "a-intro")
	}
	f.edge("a-home", de, "a-main", "a-about", "a-contact")
	f.edge("a-home", en, "a-main", "a-about-en", "a-contact")

	f.restrict(de, "contact", "contact")

	f.reference("a-about", "related", 0, "contact", `{}`)
	f.reference("a-about", "related", 1, "home", `{"weight":{"value":2,"type":"int"}}`)
	f.reference("a-about-en", "related", 0, "home", `{}`)

	return NewContentGraph(s.DB(), testutil.ContentRepository(t).NodeTypes)
}

func ids(nodes []*Node) []ir.NodeAggregateID {
	out := make([]ir.NodeAggregateID, len(nodes))
	for i, n := range nodes {
		out[i] = n.AggregateID
	}
	return out
}

func aggregateIDs(aggs []*NodeAggregate) []ir.NodeAggregateID {
	out := make([]ir.NodeAggregateID, len(aggs))
	for i, a := range aggs {
		out[i] = a.ID
	}
	return out
}
