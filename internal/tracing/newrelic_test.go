package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/identifier/config"
)

func TestTracerDisabledWithoutLicense(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{AppName: "Identifier Service"})
	require.NoError(t, err)

	txn := tracer.StartTransaction("IssueBatch")
	assert.Nil(t, txn)
	assert.Nil(t, tracer.Application())

	seg := tracer.StartSpan("allocate", txn)
	assert.NotPanics(t, func() {
		seg.End()
		tracer.AddAttribute(txn, "site_id", 1)
		tracer.RecordError(txn, errors.New("boom"))
		tracer.EndTransaction(txn)
		tracer.Close()
	})
}
