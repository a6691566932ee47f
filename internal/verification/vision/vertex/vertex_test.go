package vertex

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/domain/quality"
	"docverify/internal/verification/models"
	"docverify/internal/verification/vision"
)

type fakeModel struct {
	text  string
	err   error
	parts []genai.Part
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	if f.err != nil {
		return nil, f.err
	}
	return textResponse(f.text), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}},
		}},
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestAdapter_Classify(t *testing.T) {
	classifier := &fakeModel{text: " License.\n"}
	a := newAdapter(classifier, &fakeModel{}, &fakeModel{}, document.NewRegistry())

	token, err := a.Classify(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "license", token)

	require.Len(t, classifier.parts, 2)
	instruction, ok := classifier.parts[0].(genai.Text)
	require.True(t, ok)
	assert.Contains(t, string(instruction), "'passport'")
	blob, ok := classifier.parts[1].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/png", blob.MIMEType)
}

func TestAdapter_Extract(t *testing.T) {
	extractor := &fakeModel{text: "```json\n{\"full_name\":\"Jane Roe\"}\n```"}
	a := newAdapter(&fakeModel{}, extractor, &fakeModel{}, document.NewRegistry(),
		WithDefaultConfidence(models.MustConfidence(0.8)))

	out, err := a.Extract(context.Background(), pngHeader, "Extract in JSON format:\n- full_name")
	require.NoError(t, err)
	assert.Equal(t, `{"full_name":"Jane Roe"}`, out.Text)
	assert.Equal(t, 0.8, out.Confidence.Value())
}

func TestAdapter_AssessQuality(t *testing.T) {
	t.Run("parses and normalizes flags", func(t *testing.T) {
		checker := &fakeModel{text: `{"centered":"Yes","clear":"yes ","fully_visible":"no"}`}
		a := newAdapter(&fakeModel{}, &fakeModel{}, checker, document.NewRegistry())

		got, err := a.AssessQuality(context.Background(), pngHeader)
		require.NoError(t, err)
		assert.Equal(t, quality.Assessment{Centered: "yes", Clear: "yes", FullyVisible: "no"}, got)
	})

	t.Run("malformed json is bad data", func(t *testing.T) {
		checker := &fakeModel{text: "looks fine to me"}
		a := newAdapter(&fakeModel{}, &fakeModel{}, checker, document.NewRegistry())

		_, err := a.AssessQuality(context.Background(), pngHeader)
		require.Error(t, err)
		assert.Equal(t, vision.ErrorBadData, vision.GetCategory(err))
	})
}

func TestAdapter_PropagatesModelErrors(t *testing.T) {
	boom := errors.New("boom")
	a := newAdapter(&fakeModel{err: boom}, &fakeModel{}, &fakeModel{}, document.NewRegistry())

	_, err := a.Classify(context.Background(), pngHeader)
	assert.ErrorIs(t, err, boom)
}

func TestResponseText(t *testing.T) {
	t.Run("joins text parts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("pass"), genai.Text("port")}},
		}}}
		text, err := ResponseText(resp)
		require.NoError(t, err)
		assert.Equal(t, "passport", text)
	})

	t.Run("empty responses are errors", func(t *testing.T) {
		for _, resp := range []*genai.GenerateContentResponse{
			nil,
			{},
			{Candidates: []*genai.Candidate{{}}},
			textResponse("   "),
		} {
			_, err := ResponseText(resp)
			assert.Error(t, err)
		}
	})
}

func TestImageFormat(t *testing.T) {
	assert.Equal(t, "png", ImageFormat(pngHeader))
	assert.Equal(t, "jpeg", ImageFormat([]byte("\xff\xd8\xff\xe0rest")))
	assert.Equal(t, "jpeg", ImageFormat([]byte("plain text")))
}

func TestClassificationInstruction(t *testing.T) {
	got := ClassificationInstruction([]document.DocumentType{document.TypeLicense, document.TypePassport})
	assert.Contains(t, got, "'license', 'passport'")
	assert.Contains(t, got, "'unknown'")
}
