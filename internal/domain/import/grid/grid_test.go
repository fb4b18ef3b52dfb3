package grid

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCell(t *testing.T) {
	t.Run("zero value is empty", func(t *testing.T) {
		var c Cell
		assert.Equal(t, KindEmpty, c.Kind())
		assert.True(t, c.IsEmpty())
		assert.Equal(t, "", c.String())
	})

	t.Run("empty text collapses to empty cell", func(t *testing.T) {
		assert.Equal(t, KindEmpty, Text("").Kind())
		assert.True(t, Text("   ").IsEmpty())
	})

	t.Run("renders every kind", func(t *testing.T) {
		assert.Equal(t, "Mercadona", Text("Mercadona").String())
		assert.Equal(t, "-45.5", Number(-45.5).String())
		assert.Equal(t, "2023-03-15", DateCell(2023, time.March, 15).String())
	})

	t.Run("date fields round trip", func(t *testing.T) {
		y, m, d := DateCell(2024, time.February, 29).DateValue()
		assert.Equal(t, 2024, y)
		assert.Equal(t, time.February, m)
		assert.Equal(t, 29, d)
	})
}

func TestGrid(t *testing.T) {
	g := FromStrings([][]string{{"a", ""}, {"b"}})

	assert.Equal(t, KindText, g.Cell(0, 0).Kind())
	assert.Equal(t, KindEmpty, g.Cell(0, 1).Kind())
	assert.Equal(t, KindEmpty, g.Cell(1, 5).Kind(), "out of range is empty")
	assert.Equal(t, KindEmpty, g.Cell(-1, 0).Kind())
	assert.Equal(t, []string{"a", ""}, Strings(g[0]))

	assert.True(t, BlankRow([]Cell{Empty(), Text("  ")}))
	assert.False(t, BlankRow([]Cell{Empty(), Number(0)}))
}

func TestReadCSV(t *testing.T) {
	t.Run("semicolon export with preamble", func(t *testing.T) {
		data := "Cuenta: ES12 3456\n\nFecha;Concepto;Importe\n15/01/2024;Café Central;-4,50\n"

		g, err := ReadCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, g, 3, "blank lines are skipped by the csv reader")
		assert.Equal(t, []string{"Fecha", "Concepto", "Importe"}, Strings(g[1]))
		assert.Equal(t, "-4,50", g.Cell(2, 2).TextValue())
	})

	t.Run("commas inside semicolon descriptions", func(t *testing.T) {
		data := "Fecha;Fecha valor;Concepto;Importe;Saldo\n" +
			"01/02/2024;01/02/2024;Compra tienda, calle Mayor, 12, Madrid;-12,50;1.234,56\n" +
			"02/02/2024;02/02/2024;Farmacia;-8,00;1.226,56\n"

		g, err := ReadCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, g, 3)
		assert.Equal(t, []string{"Fecha", "Fecha valor", "Concepto", "Importe", "Saldo"}, Strings(g[0]))
		assert.Equal(t, "Compra tienda, calle Mayor, 12, Madrid", g.Cell(1, 2).TextValue())
		assert.Equal(t, "-12,50", g.Cell(1, 3).TextValue())
	})

	t.Run("strips BOM", func(t *testing.T) {
		g, err := ReadCSV(strings.NewReader("\ufeffdate,description,amount\n"))
		require.NoError(t, err)
		assert.Equal(t, "date", g.Cell(0, 0).TextValue())
	})

	t.Run("decodes windows-1252", func(t *testing.T) {
		data := []byte("Fecha;Descripci\xf3n\n")
		g, err := ReadCSV(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "Descripción", g.Cell(0, 1).TextValue())
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3", ','},
		{"semicolon", "a;b;c\n1;2;3", ';'},
		{"tab", "a\tb\tc", '\t'},
		{"pipe", "a|b|c", '|'},
		{"single column defaults to comma", "amount\n12", ','},
		{"semicolon beats decimal commas", "Fecha;Importe\n01/01/2024;1,50", ';'},
		{
			"semicolon beats commas in descriptions",
			"Fecha;Fecha valor;Concepto;Importe;Saldo\n" +
				"01/02/2024;01/02/2024;Compra tienda, calle Mayor, 12, Madrid;-12,50;1.234,56\n",
			';',
		},
		{
			"quoted commas are not counted",
			"date,description,amount\n01/02/2024,\"Shop, Main St, 12, NY\",-12.50\n01/03/2024,Cafe,-3.00\n",
			',',
		},
		{
			"preamble lines do not vote",
			"Account: 123, Main branch, Lisbon, PT\nData;Descricao;Valor\n01/02/2024;Pingo Doce;-3,20\n",
			';',
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.data))
		})
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Fecha", "Concepto", "Importe"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{45000, "Mercadona", -23.5}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"15/03/2023", "00123", "1.234,56"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	g, err := ReadFile("statement.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, g, 3)

	assert.Equal(t, KindText, g.Cell(0, 0).Kind())
	assert.Equal(t, KindNumber, g.Cell(1, 0).Kind())
	assert.Equal(t, 45000.0, g.Cell(1, 0).NumberValue())
	assert.Equal(t, -23.5, g.Cell(1, 2).NumberValue())
	assert.Equal(t, KindText, g.Cell(2, 1).Kind(), "numeric-looking strings stay text")
	assert.Equal(t, "1.234,56", g.Cell(2, 2).TextValue())
}

func TestReadFile(t *testing.T) {
	t.Run("sniffs csv without extension", func(t *testing.T) {
		g, err := ReadFile("upload", []byte("a,b\n1,2"))
		require.NoError(t, err)
		assert.Len(t, g, 2)
	})

	t.Run("rejects binary", func(t *testing.T) {
		_, err := ReadFile("upload.bin", []byte{0xff, 0xfe, 0x00})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
