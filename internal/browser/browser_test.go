package browser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrapIsEmbedded(t *testing.T) {
	s := Bootstrap()
	require.Contains(t, s, "export async function bootstrap")
	require.Contains(t, s, `import App from "/pages/_app.js"`)
}
