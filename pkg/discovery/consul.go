package discovery

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/consul/api"

	"performance-service/internal/config"
	"performance-service/internal/logger"
)

type ServiceRegistry struct {
	client *api.Client
	server config.ServerConfig
	log    *logger.Logger
}

func NewServiceRegistry(cfg *config.Config, log *logger.Logger) (*ServiceRegistry, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.Consul.ConsulAddress

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	return &ServiceRegistry{client: client, server: cfg.Server, log: log}, nil
}

func (sr *ServiceRegistry) registrationID() string {
	return sr.server.ServiceID + "-http"
}

// Registration describes this instance to Consul, health-checked through
// /health.
func (sr *ServiceRegistry) Registration() *api.AgentServiceRegistration {
	httpPort, _ := strconv.Atoi(sr.server.Port)
	return &api.AgentServiceRegistration{
		ID:      sr.registrationID(),
		Name:    sr.server.ServiceName,
		Port:    httpPort,
		Address: sr.server.ServiceAddress,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", sr.server.ServiceAddress, sr.server.Port),
			Interval: "10s",
			Timeout:  "5s",
		},
		Tags: []string{"performance", "analytics", "http"},
		Meta: map[string]string{
			"protocol": "http",
		},
	}
}

func (sr *ServiceRegistry) Register() error {
	if err := sr.client.Agent().ServiceRegister(sr.Registration()); err != nil {
		return fmt.Errorf("failed to register HTTP service with Consul: %w", err)
	}
	sr.log.Info("registered with Consul", "service_id", sr.registrationID())
	return nil
}

func (sr *ServiceRegistry) Deregister() error {
	if err := sr.client.Agent().ServiceDeregister(sr.registrationID()); err != nil {
		return fmt.Errorf("failed to deregister HTTP service: %w", err)
	}
	return nil
}
