package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

// DefaultVersion is used when no broker version is configured.
var DefaultVersion = sarama.V2_8_0_0

func newSaramaConfig(clientID, version string) (*sarama.Config, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = DefaultVersion
	if version != "" {
		v, err := sarama.ParseKafkaVersion(version)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka version %q: %w", version, err)
		}
		saramaCfg.Version = v
	}
	if clientID != "" {
		saramaCfg.ClientID = clientID
	}
	return saramaCfg, nil
}
