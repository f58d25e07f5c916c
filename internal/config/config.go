// Package config loads per-service configuration via envconfig, mirroring
// api/pkg/config in the teacher: one struct per service, struct tags carry
// the recognized environment variable and its default.
package config

import "github.com/kelseyhightower/envconfig"

// GatewayConfig configures the edge service: §6 "Gateway:
// {port, authentication:{enabled}, rateLimit:{enabled,windowMs,maxRequests},
// cors:{origins}}".
type GatewayConfig struct {
	Port           int      `envconfig:"GATEWAY_PORT" default:"8080"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	OrchestratorURL string  `envconfig:"ORCHESTRATOR_URL" default:"http://localhost:8081"`
	ModelManagerURL string  `envconfig:"MODEL_MANAGER_URL" default:"http://localhost:8082"`

	AuthEnabled bool `envconfig:"AUTH_ENABLED" default:"true"`

	BootstrapAPIKey string `envconfig:"GATEWAY_BOOTSTRAP_API_KEY" default:"demo-api-key-123"`

	RateLimitEnabled     bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitWindowMs    int64 `envconfig:"RATE_LIMIT_WINDOW_MS" default:"60000"`
	RateLimitMaxRequests int   `envconfig:"RATE_LIMIT_MAX_REQUESTS" default:"100"`

	RequestTimeoutMs int64 `envconfig:"REQUEST_TIMEOUT_MS" default:"60000"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

func LoadGatewayConfig() (GatewayConfig, error) {
	var cfg GatewayConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return GatewayConfig{}, err
	}
	return cfg, nil
}

// OrchestratorConfig configures the control-plane service: §6
// "{port, loadBalancingStrategy, healthCheckInterval,
// serviceDiscoveryInterval, requestTimeout}".
type OrchestratorConfig struct {
	Port     int    `envconfig:"ORCHESTRATOR_PORT" default:"8081"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	LoadBalancingStrategy string `envconfig:"LOAD_BALANCING_STRATEGY" default:"round-robin"`

	HealthCheckIntervalMs      int64 `envconfig:"HEALTH_CHECK_INTERVAL_MS" default:"5000"`
	ServiceDiscoveryIntervalMs int64 `envconfig:"SERVICE_DISCOVERY_INTERVAL_MS" default:"10000"`
	RequestTimeoutMs           int64 `envconfig:"REQUEST_TIMEOUT_MS" default:"60000"`
}

func LoadOrchestratorConfig() (OrchestratorConfig, error) {
	var cfg OrchestratorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return OrchestratorConfig{}, err
	}
	return cfg, nil
}

// WorkerConfig configures an inference worker process: §6
// "{port, maxConcurrentInferences, inferenceTimeout, modelCacheSize,
// healthCheckInterval}".
type WorkerConfig struct {
	ID       string `envconfig:"WORKER_ID" default:""`
	Port     int    `envconfig:"WORKER_PORT" default:"9090"`
	Address  string `envconfig:"WORKER_ADDRESS" default:""`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	ModelManagerURL string `envconfig:"MODEL_MANAGER_URL" default:"http://localhost:8082"`
	OrchestratorURL string `envconfig:"ORCHESTRATOR_URL" default:"http://localhost:8081"`

	MaxConcurrentInferences int   `envconfig:"MAX_CONCURRENT_INFERENCES" default:"10"`
	InferenceTimeoutMs      int64 `envconfig:"INFERENCE_TIMEOUT_MS" default:"30000"`
	ModelCacheSize          int   `envconfig:"MODEL_CACHE_SIZE" default:"4"`
	HealthCheckIntervalMs   int64 `envconfig:"HEALTH_CHECK_INTERVAL_MS" default:"5000"`

	Capabilities []string `envconfig:"WORKER_CAPABILITIES" default:""`
}

func LoadWorkerConfig() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return WorkerConfig{}, err
	}
	return cfg, nil
}

// ModelManagerConfig configures the blob store + registry service: §6
// "{port, storagePath, maxModelSize, checksumValidation, supportedFormats[]}".
type ModelManagerConfig struct {
	Port     int    `envconfig:"MODEL_MANAGER_PORT" default:"8082"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StoragePath        string   `envconfig:"STORAGE_PATH" default:"./data/models"`
	MaxModelSize        string   `envconfig:"MAX_MODEL_SIZE" default:"1GB"`
	ChecksumValidation  bool     `envconfig:"CHECKSUM_VALIDATION" default:"true"`
	SupportedFormats    []string `envconfig:"SUPPORTED_FORMATS" default:"onnx,pytorch,tensorflow"`
}

func LoadModelManagerConfig() (ModelManagerConfig, error) {
	var cfg ModelManagerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ModelManagerConfig{}, err
	}
	return cfg, nil
}
