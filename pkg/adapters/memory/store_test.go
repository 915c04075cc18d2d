package memory_test

import (
	"testing"

	"github.com/aretw0/flowdeck/pkg/adapters/memory"
	"github.com/aretw0/flowdeck/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunDraftStoreContract(t, store)
}
