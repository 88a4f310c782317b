package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher periodically publishes the latest band-power analysis and
// pipeline statistics to a broker.
type MQTTPublisher struct {
	client    mqtt.Client
	config    *MQTTConfig
	processor *Processor
}

// bandPowerPayload is the published band-power message.
type bandPowerPayload struct {
	Timestamp int64        `json:"timestamp"`
	Bands     []BandPowers `json:"bands"`
}

// statsPayload is the published pipeline statistics message.
type statsPayload struct {
	Timestamp int64         `json:"timestamp"`
	Stats     PipelineStats `json:"stats"`
}

// generateClientID creates a random client ID for the MQTT connection
func generateClientID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "eegstreamd_" + hex.EncodeToString(bytes)
}

// loadTLSConfig loads TLS configuration from files
func loadTLSConfig(tlsConfig MQTTTLSConfig) (*tls.Config, error) {
	if !tlsConfig.Enabled {
		return nil, nil
	}

	config := &tls.Config{}

	if tlsConfig.CACert != "" {
		caCert, err := os.ReadFile(tlsConfig.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	if tlsConfig.ClientCert != "" && tlsConfig.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.ClientCert, tlsConfig.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// NewMQTTPublisher connects to the broker with auto-reconnect enabled.
func NewMQTTPublisher(config *MQTTConfig, processor *Processor) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(generateClientID())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if config.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: Connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("MQTT: Attempting to reconnect...")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Printf("MQTT: Successfully connected to broker: %s", config.Broker)

	return &MQTTPublisher{
		client:    client,
		config:    config,
		processor: processor,
	}, nil
}

// StartPublisher publishes at the configured interval until the context ends.
func (mp *MQTTPublisher) StartPublisher(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Duration(mp.config.PublishInterval) * time.Second)
		defer ticker.Stop()

		log.Printf("MQTT: Publisher started with %d second interval", mp.config.PublishInterval)
		mp.publishAll()

		for {
			select {
			case <-ctx.Done():
				log.Println("MQTT: Publisher stopped")
				mp.client.Disconnect(250)
				return
			case <-ticker.C:
				mp.publishAll()
			}
		}
	}()
}

func (mp *MQTTPublisher) publishAll() {
	now := time.Now().Unix()

	bands := mp.processor.LastBandPowers()
	if len(bands) > 0 {
		mp.publish("bandpowers", bandPowerPayload{Timestamp: now, Bands: bands})
	}

	mp.publish("stats", statsPayload{Timestamp: now, Stats: mp.processor.Stats()})
}

func (mp *MQTTPublisher) publish(subtopic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT: Failed to encode %s payload: %v", subtopic, err)
		return
	}

	topic := fmt.Sprintf("%s/%s", mp.config.TopicPrefix, subtopic)
	token := mp.client.Publish(topic, 0, false, data)
	token.WaitTimeout(5 * time.Second)
	if token.Error() != nil {
		log.Printf("MQTT: Failed to publish to %s: %v", topic, token.Error())
	}
}
