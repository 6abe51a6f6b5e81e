package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurofama99/risingwave/pkg/utils"
)

var configTestValue = flag.String("config_test_value", "default", "Exists only to be set from test config files.")

func TestSetConfigFlagsAppliesValues(t *testing.T) {
	utils.SetTestFlag(t, "config_test_value", "default") // Installs the restore.
	require.NoError(t, setConfigFlags([]byte("config_test_value: from-file\n")))
	assert.Equal(t, "from-file", *configTestValue)
}

func TestSetConfigFlagsRejectsUnknownKeys(t *testing.T) {
	err := setConfigFlags([]byte("no_such_flag: 1\n"))
	assert.ErrorContains(t, err, "not registered")
}

func TestSetConfigFlagsRejectsMalformedYaml(t *testing.T) {
	err := setConfigFlags([]byte("\t: ["))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfigValueToString(t *testing.T) {
	for _, testCase := range []struct {
		value any
		want  string
	}{
		{value: true, want: "true"},
		{value: 42, want: "42"},
		{value: int64(-7), want: "-7"},
		{value: 2.5, want: "2.5"},
		{value: "15s", want: "15s"},
	} {
		got, err := configValueToString(testCase.value)
		require.NoError(t, err)
		assert.Equal(t, testCase.want, got)
	}

	_, err := configValueToString([]any{1, 2})
	assert.ErrorContains(t, err, "unsupported value type")
}

func TestCollectUnregisteredFlags(t *testing.T) {
	configBytes := []byte("config_test_value: ok\nghost_flag: 1\n")
	errs := CollectUnregisteredFlags(configBytes)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "ghost_flag")
}
