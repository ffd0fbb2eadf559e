// Package poster materializes generated poster images as references a client can render.
package poster

import (
	"context"
	"encoding/base64"

	"github.com/hpungsan/tether/internal/genai"
)

// Sink turns a generated image into the reference stored on the connection.
type Sink interface {
	Put(ctx context.Context, connectionID string, img *genai.Image) (string, error)
}

// DataURISink embeds the image in the reference itself, so it renders without a fetch.
type DataURISink struct{}

func (DataURISink) Put(_ context.Context, _ string, img *genai.Image) (string, error) {
	return DataURI(img), nil
}

// DataURI encodes img as data:<mime>;base64,<payload>.
func DataURI(img *genai.Image) string {
	return "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
