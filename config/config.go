// Package config builds connection factories from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/miladsoleymani/amqpconn/connection"
	"github.com/miladsoleymani/amqpconn/transport"
)

// Config holds the environment-driven factory settings. URI, when set,
// takes precedence over the host, port, credential and vhost fields.
type Config struct {
	URI               string        `env:"AMQP_URI"`
	Host              string        `env:"AMQP_HOST" envDefault:"localhost"`
	Port              int           `env:"AMQP_PORT" envDefault:"5672"`
	Username          string        `env:"AMQP_USERNAME" envDefault:"guest"`
	Password          string        `env:"AMQP_PASSWORD" envDefault:"guest"`
	VirtualHost       string        `env:"AMQP_VHOST" envDefault:"/"`
	Addresses         string        `env:"AMQP_ADDRESSES"`
	ShuffleAddresses  bool          `env:"AMQP_SHUFFLE_ADDRESSES"`
	Heartbeat         time.Duration `env:"AMQP_HEARTBEAT" envDefault:"10s"`
	ConnectionTimeout time.Duration `env:"AMQP_CONNECTION_TIMEOUT" envDefault:"30s"`
	CloseTimeout      time.Duration `env:"AMQP_CLOSE_TIMEOUT" envDefault:"30s"`
	Name              string        `env:"AMQP_CONNECTION_NAME"`
	PublisherFactory  bool          `env:"AMQP_PUBLISHER_FACTORY"`
}

// Load reads the configuration from the environment. Any given dotenv files
// are loaded first; missing files are ignored so a plain environment works
// unchanged.
func Load(dotenvFiles ...string) (Config, error) {
	for _, file := range dotenvFiles {
		_ = godotenv.Load(file)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("amqpconn/config: parse environment: %w", err)
	}
	return cfg, nil
}

// NewFactory builds a connection factory from the configuration. When
// PublisherFactory is set, a publisher sub-factory with an independent
// transport is linked before any cascading setting is applied.
func (c Config) NewFactory(opts ...connection.Option) (*connection.Factory, error) {
	var factoryOpts []connection.Option
	if c.PublisherFactory {
		pub, err := connection.NewFactory(c.newTransport())
		if err != nil {
			return nil, err
		}
		factoryOpts = append(factoryOpts, connection.WithPublisherFactory(pub))
	}
	factoryOpts = append(factoryOpts, opts...)

	f, err := connection.NewFactory(c.newTransport(), factoryOpts...)
	if err != nil {
		return nil, err
	}

	if c.Name != "" {
		f.SetName(c.Name)
	}
	f.SetCloseTimeout(c.CloseTimeout)
	if c.Addresses != "" {
		f.SetAddresses(c.Addresses)
	}
	f.SetShuffleAddresses(c.ShuffleAddresses)
	return f, nil
}

func (c Config) newTransport() *transport.Factory {
	t := transport.NewFactory()
	if c.URI != "" {
		t.SetURI(c.URI)
		t.SetHeartbeat(c.Heartbeat)
		t.SetConnectionTimeout(c.ConnectionTimeout)
		return t
	}
	t.SetUsername(c.Username)
	t.SetPassword(c.Password)
	t.SetHost(c.Host)
	t.SetPort(c.Port)
	t.SetVirtualHost(c.VirtualHost)
	t.SetHeartbeat(c.Heartbeat)
	t.SetConnectionTimeout(c.ConnectionTimeout)
	return t
}
