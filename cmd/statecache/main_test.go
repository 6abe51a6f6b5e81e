package main

import (
	"os"
	"testing"

	"github.com/maurofama99/risingwave/pkg/config"
)

func TestShippedConfigFlagsAreRegistered(t *testing.T) {
	configBytes, err := os.ReadFile("../../config.yaml")
	if err != nil {
		t.Fatalf("failed to read the shipped config: %v", err)
	}
	unregisteredFlags := config.CollectUnregisteredFlags(configBytes)
	if len(unregisteredFlags) != 0 {
		t.Fail()
		for _, flagErr := range unregisteredFlags {
			t.Error(flagErr)
		}
	}
}
