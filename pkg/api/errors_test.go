package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentflow-dev/agentflow/pkg/store"
)

func TestMapStoreError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "validation", err: store.NewValidationError("name", "is required"), wantCode: http.StatusBadRequest},
		{name: "not found", err: store.ErrNotFound, wantCode: http.StatusNotFound},
		{name: "wrapped not found", err: errors.Join(errors.New("ctx"), store.ErrNotFound), wantCode: http.StatusNotFound},
		{name: "already exists", err: store.ErrAlreadyExists, wantCode: http.StatusConflict},
		{name: "invalid input", err: store.ErrInvalidInput, wantCode: http.StatusBadRequest},
		{name: "unexpected", err: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapStoreError(tt.err)
			assert.Equal(t, tt.wantCode, he.Code)
		})
	}
}
