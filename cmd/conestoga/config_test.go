package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverclock/com-diag-diminuto-sub002/internal/serial"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs("conestoga", []string{"-c", "-E", "127.0.0.1:5555"})
	require.NoError(t, err)
	assert.Equal(t, RoleClient, cfg.Role)
	assert.Equal(t, 57600, cfg.BaudRate)
	assert.Equal(t, 8, cfg.DataBits)
	assert.Equal(t, maxDatagram, cfg.BufferSize)
	require.NotNil(t, cfg.Endpoint)
	assert.Equal(t, 5555, cfg.Endpoint.Port)
}

func TestParseArgsServerEndpointRejectsHost(t *testing.T) {
	_, err := ParseArgs("conestoga", []string{"-s", "-E", "127.0.0.1:5555"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not name a host")
}

func TestParseArgsClientEndpointRequiresHost(t *testing.T) {
	_, err := ParseArgs("conestoga", []string{"-c", "-E", ":5555"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a host")
}

func TestParseArgsServerEndpointAcceptsBarePort(t *testing.T) {
	cfg, err := ParseArgs("conestoga", []string{"-s", "-E", ":5555"})
	require.NoError(t, err)
	require.NotNil(t, cfg.Endpoint)
	assert.Equal(t, 5555, cfg.Endpoint.Port)
}

func TestParseArgsBufferSizeClampedToMaximum(t *testing.T) {
	cfg, err := ParseArgs("conestoga", []string{"-c", "-E", "127.0.0.1:1", "-b", "999999"})
	require.NoError(t, err)
	assert.Equal(t, maxDatagram, cfg.BufferSize)
}

func TestParseArgsBufferSizeFlooredToMinimum(t *testing.T) {
	cfg, err := ParseArgs("conestoga", []string{"-c", "-E", "127.0.0.1:1", "-b", "1"})
	require.NoError(t, err)
	assert.Equal(t, minBufferSize, cfg.BufferSize)
}

func TestParseArgsStopBitsAndParity(t *testing.T) {
	cfg, err := ParseArgs("conestoga", []string{"-c", "-E", "127.0.0.1:1", "-2", "-o"})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.StopBits)
	assert.Equal(t, serial.ParityOdd, cfg.Parity)
}

func TestParseArgsHelp(t *testing.T) {
	_, err := ParseArgs("conestoga", []string{"-?"})
	require.Error(t, err)
	var help HelpRequested
	assert.ErrorAs(t, err, &help)
}

func TestParseArgsInvalidBaudRejected(t *testing.T) {
	_, err := ParseArgs("conestoga", []string{"-c", "-E", "127.0.0.1:1", "-B", "0"})
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseArgsMissingDeviceRejected(t *testing.T) {
	_, err := ParseArgs("conestoga", []string{"-c", "-E", "127.0.0.1:1", "-D", "/no/such/device"})
	require.Error(t, err)
}

func TestResolveEndpointInvalidPortRejected(t *testing.T) {
	_, err := resolveEndpoint("127.0.0.1:0", PreferenceNone, RoleClient)
	require.Error(t, err)
}
