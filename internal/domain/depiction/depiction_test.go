package depiction

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/domain/conformer"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
)

func TestSVG_Benzene(t *testing.T) {
	svg, err := SVG(molecule.MustParseSMILES("c1ccccc1"), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg"`))
	assert.True(t, strings.HasSuffix(svg, "</svg>\n"))
	// six ring bonds, each with a dashed inner stroke
	assert.Equal(t, 12, strings.Count(svg, "<line "))
	assert.Equal(t, 6, strings.Count(svg, "stroke-dasharray"))
	assert.NotContains(t, svg, "<text ")
}

func TestSVG_Labels(t *testing.T) {
	svg, err := SVG(molecule.MustParseSMILES("CC(=O)O"), Options{Title: "acetic <acid>"})
	require.NoError(t, err)
	assert.Contains(t, svg, "<title>acetic &lt;acid&gt;</title>")
	assert.Contains(t, svg, ">OH</text>")
	assert.Contains(t, svg, ">O</text>")
	// two single strokes and two for the double bond
	assert.Equal(t, 4, strings.Count(svg, "<line "))
}

func TestAtomLabel(t *testing.T) {
	m := molecule.MustParseSMILES("C[NH3+].[O-]C.C#N.[13CH4]")
	assert.Equal(t, "", AtomLabel(m, 0))
	assert.Equal(t, "NH₃+", AtomLabel(m, 1))
	assert.Equal(t, "O−", AtomLabel(m, 2))
	assert.Equal(t, "N", AtomLabel(m, 5))
	assert.Equal(t, "13CH₄", AtomLabel(m, 6))

	methane := molecule.MustParseSMILES("C")
	assert.Equal(t, "CH₄", AtomLabel(methane, 0))
}

func TestSVG_Empty(t *testing.T) {
	_, err := SVG(molecule.New(), DefaultOptions())
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	m := molecule.MustParseSMILES("CCO")
	conf, err := conformer.Generate(context.Background(), m, conformer.DefaultOptions())
	require.NoError(t, err)

	hash := molecule.StructureHash(molecule.CanonicalSMILES(m))
	arts, err := Render(m, conf, hash, "ethanol")
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, hash+"/2d.svg", arts[0].Key)
	assert.Equal(t, ContentTypeSVG, arts[0].ContentType)
	assert.Equal(t, hash+"/3d.mol", arts[1].Key)
	assert.Equal(t, ContentTypeMol, arts[1].ContentType)

	block := string(arts[1].Content)
	assert.True(t, strings.HasPrefix(block, "ethanol\n"))
	assert.Contains(t, block, "  9  8  0  0")

	back, coords, err := molecule.ReadMolBlock(strings.NewReader(block))
	require.NoError(t, err)
	assert.Equal(t, 9, back.NumAtoms())
	assert.Len(t, coords, 9)

	arts, err = Render(m, nil, hash, "")
	require.NoError(t, err)
	assert.Len(t, arts, 1)
}
