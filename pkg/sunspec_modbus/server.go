package sunspec_modbus

import (
	"time"

	"github.com/simonvetter/modbus"
)

type Server struct {
	*RegisterMap
	server *modbus.ModbusServer
}

// NewServer binds a register map to a Modbus TCP listener on url
// (tcp://host:port). The listener opens on Start.
func NewServer(url string, info DeviceInfo, hasStorage bool) (*Server, error) {
	registers := NewRegisterMap(info, hasStorage)
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        url,
		Timeout:    30 * time.Second,
		MaxClients: 5,
	}, registers)
	if err != nil {
		return nil, err
	}
	return &Server{
		RegisterMap: registers,
		server:      server,
	}, nil
}

func (s *Server) Start() error {
	return s.server.Start()
}

func (s *Server) Stop() error {
	return s.server.Stop()
}
