package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/model"
)

func TestJobCodec(t *testing.T) {
	job := model.IngestJob{DocumentID: 7, FilePath: "uploads/abc.pdf", MIMEType: "application/pdf"}
	payload, err := EncodeJob(job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"document_id":7,"file_path":"uploads/abc.pdf","mime_type":"application/pdf"}`, string(payload))

	decoded, err := DecodeJob(payload)
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
}

func TestJobCodec_RejectsMissingDocument(t *testing.T) {
	_, err := EncodeJob(model.IngestJob{FilePath: "x"})
	assert.Error(t, err)

	_, err = DecodeJob([]byte(`{"file_path":"x"}`))
	assert.Error(t, err)

	_, err = DecodeJob([]byte(`not json`))
	assert.Error(t, err)
}

func TestPing_NilConnection(t *testing.T) {
	assert.Error(t, Ping(nil))
}
