package storage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectURL(t *testing.T) {
	u, _ := url.Parse("https://minio.local:9000")
	assert.Equal(t, "https://minio.local:9000/reports/acme/reports/doc-1/v2.json",
		objectURL(u, "reports", "acme/reports/doc-1/v2.json"))

	assert.Equal(t, "http://minio:9000/b/k", objectURL(&url.URL{Host: "minio:9000"}, "b", "k"))
}
