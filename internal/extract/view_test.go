package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const viewSQL = `-- reporting view over the assessment base
CREATE VIEW rpt_udp.v_assessment AS
SELECT a.*, b.branch_desc
FROM rpt_udp.rpt_assessment a
LEFT JOIN rpt_udp.ref_branch_code b
  ON a.branch_code = b.branch_code;
`

func TestViewName(t *testing.T) {
	name, ok := viewName(viewSQL)
	assert.True(t, ok)
	assert.Equal(t, "rpt_udp.v_assessment", name)
}

func TestViewName_OrReplace(t *testing.T) {
	name, ok := viewName(`create or replace view adm.v_scores as select 1`)
	assert.True(t, ok)
	assert.Equal(t, "adm.v_scores", name)
}

func TestViewName_UnqualifiedIgnored(t *testing.T) {
	_, ok := viewName(`create view v_local as select 1`)
	assert.False(t, ok)
}

func TestViewName_None(t *testing.T) {
	_, ok := viewName(`select * from db.t`)
	assert.False(t, ok)
}

func TestViewReads(t *testing.T) {
	got := viewReads(viewSQL)
	assert.Equal(t, []string{"rpt_udp.ref_branch_code", "rpt_udp.rpt_assessment"}, got)
}

func TestViewReads_SelfReferenceKept(t *testing.T) {
	got := viewReads(`create or replace view adm.v_latest as select * from adm.v_latest`)
	assert.Equal(t, []string{"adm.v_latest"}, got)
}

func TestViewReads_UnqualifiedFromIgnored(t *testing.T) {
	got := viewReads(`create view db.v as select * from staging_orders`)
	assert.Empty(t, got)
}
