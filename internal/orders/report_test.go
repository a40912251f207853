package orders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashbot-backend/internal/cache"
)

const reportHTML = `<html><body><table>
<tr><td>Hoja de pedidos</td></tr>
<tr><td>N&uacute;mero de orden</td><td>Cliente</td><td>Estatus</td><td>Gu&iacute;a</td></tr>
<tr><td>#1042</td><td>Ana Rojas</td><td>Enviado</td><td>CHX-9931</td></tr>
<tr><td>1043</td><td>Luis Soto</td><td>En preparaci&oacute;n</td><td></td></tr>
<tr><td></td><td>fila sin pedido</td><td></td><td></td></tr>
</table></body></html>`

func TestParseReport(t *testing.T) {
	rows, err := ParseReport(reportHTML)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Accented synonyms map onto canonical columns.
	assert.Equal(t, "#1042", rows[0][ColOrder])
	assert.Equal(t, "Ana Rojas", rows[0][ColCustomer])
	assert.Equal(t, "Enviado", rows[0][ColStatus])
	assert.Equal(t, "CHX-9931", rows[0][ColTracking])

	// Empty cells are simply absent.
	_, hasTracking := rows[1][ColTracking]
	assert.False(t, hasTracking)
}

func TestParseReport_NoHeader(t *testing.T) {
	_, err := ParseReport(`<table><tr><td>sin</td><td>encabezado</td></tr></table>`)
	assert.Error(t, err)
}

func TestDetectOrderNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare number", "estado del pedido 1042", "1042"},
		{"hash prefix", "mi orden es #1042 gracias", "1042"},
		{"longest digit run wins", "hola, soy del depto 12, pedido 90210", "90210"},
		{"first wins on ties", "pedido 111 o 222", "111"},
		{"no digits", "dónde está mi pedido", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectOrderNumber(tt.input))
		})
	}
}

func TestLooksLikeOrderIntent(t *testing.T) {
	assert.True(t, LooksLikeOrderIntent("¿Dónde está mi pedido?"))
	assert.True(t, LooksLikeOrderIntent("necesito el TRACKING de mi compra"))
	assert.True(t, LooksLikeOrderIntent("cuándo llega mi envío"))
	assert.False(t, LooksLikeOrderIntent("busco zapatillas rojas"))
}

func TestReader_LookupAndCaching(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(reportHTML))
	}))
	defer server.Close()

	mem := cache.NewMemoryCache()
	defer mem.Close()

	reader := NewReader(server.URL, time.Minute, 5*time.Second, mem)
	ctx := context.Background()

	// Formatting differences do not matter: digits match digits.
	row, err := reader.Lookup(ctx, "1042")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Ana Rojas", row[ColCustomer])

	// Second lookup inside the TTL serves from cache.
	row, err = reader.Lookup(ctx, "#1043")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Luis Soto", row[ColCustomer])
	assert.Equal(t, int32(1), fetches.Load())

	// Unknown order yields nil, not an error.
	row, err = reader.Lookup(ctx, "9999")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestReader_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	mem := cache.NewMemoryCache()
	defer mem.Close()

	reader := NewReader(server.URL, time.Minute, 5*time.Second, mem)
	_, err := reader.Lookup(context.Background(), "1042")
	assert.Error(t, err)
}

func TestRenderVertical(t *testing.T) {
	row := Row{
		ColOrder:    "#1042",
		ColCustomer: "Ana Rojas",
		ColStatus:   "Enviado",
		ColTracking: "CHX-9931",
	}

	out := RenderVertical(row)
	assert.Contains(t, out, "**Pedido:** #1042")
	assert.Contains(t, out, "**Estado:** Enviado")
	assert.NotContains(t, out, "Notas")
}

func TestRenderTable(t *testing.T) {
	rows := []Row{
		{ColOrder: "#1042", ColStatus: "Enviado"},
		{ColOrder: "1043", ColStatus: "En preparación"},
	}

	out := RenderTable(rows)
	assert.Contains(t, out, "Pedido | Estado")
	assert.Contains(t, out, "--- | ---")
	assert.Contains(t, out, "#1042 | Enviado")
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Empty(t, RenderTable(nil))
}
