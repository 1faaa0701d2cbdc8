package cmn

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/NVIDIA/storegate/3rdparty/glog"
	"github.com/NVIDIA/storegate/cmn/jsp"
)

// AdapterMode selects which storage backend family the gateway runs on.
type AdapterMode string

const (
	AdapterLocal AdapterMode = "local"
	AdapterEdge  AdapterMode = "edge"
)

// EdgeBackend selects the concrete cloud backend when AdapterMode is edge.
type EdgeBackend string

const (
	BackendAWS   EdgeBackend = "aws"
	BackendAzure EdgeBackend = "azure"
	BackendGCP   EdgeBackend = "gcp"
)

// Config holds every process-wide, immutable-after-startup value: the
// network bind address, the bootstrap key, the HMAC signing secret, and
// the selected storage adapter's credentials. It is loaded once and
// never mutated in place.
type Config struct {
	ListenAddr string `json:"listen_addr"`

	BootstrapAPIKey string `json:"bootstrap_api_key"`
	SigningSecret   string `json:"signing_secret"`

	CORSOrigin        string        `json:"cors_origin"`
	PublicDomain      string        `json:"public_domain"`
	PresignExpiresIn  time.Duration `json:"presign_expires_in"`
	PublicPresignTTL  time.Duration `json:"public_presign_expires_in"`
	TokenDefaultTTL   time.Duration `json:"token_default_ttl"`
	TokenMaxTTL       time.Duration `json:"token_max_ttl"`

	AdapterMode AdapterMode `json:"adapter_mode"`
	Local       LocalConf   `json:"local"`
	Edge        EdgeConf    `json:"edge"`

	MetadataDir string `json:"metadata_dir"` // where the gateway persists its own signing secret, etc.
	EnablePprof bool   `json:"enable_pprof"` // mount /debug/pprof/* for operator diagnostics
}

type LocalConf struct {
	DBPath   string `json:"db_path"`   // buntdb file for KV/principals/channels
	BlobRoot string `json:"blob_root"` // filesystem root for blob bytes
}

type EdgeConf struct {
	Backend        EdgeBackend `json:"backend"`
	Region         string      `json:"region"`
	S3Bucket       string      `json:"s3_bucket"`
	DynamoTable    string      `json:"dynamo_table"`
	AzureAccount   string      `json:"azure_account"`
	AzureContainer string      `json:"azure_container"`
	AzureKey       string      `json:"azure_key"`
	GCSBucket      string      `json:"gcs_bucket"`
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		CORSOrigin:       "*",
		PresignExpiresIn: 3600 * time.Second,
		PublicPresignTTL: 7 * 24 * time.Hour,
		TokenDefaultTTL:  7 * 24 * time.Hour,
		TokenMaxTTL:      7 * 24 * time.Hour,
		AdapterMode:      AdapterLocal,
		Local: LocalConf{
			DBPath:   "./data/storegate.db",
			BlobRoot: "./data/blobs",
		},
		MetadataDir: "./data",
	}
}

// LoadConfig reads path (if non-empty and present) as a JSON overlay on
// top of defaultConfig, then applies STOREGATE_* environment overrides
// for the values operators most commonly need to override per-deploy
// without editing the checked-in file.
func LoadConfig(path string) (*Config, error) {
	config := defaultConfig()
	if path != "" {
		if err := jsp.Load(path, config); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("STOREGATE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("STOREGATE_BOOTSTRAP_API_KEY"); v != "" {
		c.BootstrapAPIKey = v
	}
	if v := os.Getenv("STOREGATE_SIGNING_SECRET"); v != "" {
		c.SigningSecret = v
	}
	if v := os.Getenv("STOREGATE_CORS_ORIGIN"); v != "" {
		c.CORSOrigin = v
	}
	if v := os.Getenv("STOREGATE_PUBLIC_DOMAIN"); v != "" {
		c.PublicDomain = v
	}
	if v := os.Getenv("STOREGATE_ADAPTER_MODE"); v != "" {
		c.AdapterMode = AdapterMode(v)
	}
	if v := os.Getenv("STOREGATE_PRESIGN_EXPIRES_IN"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.PresignExpiresIn = time.Duration(secs) * time.Second
		}
	}
}

// globalConfigOwner is an atomic.Pointer-backed holder so every goroutine
// reads a consistent, immutable *Config without taking a lock, while
// still allowing a controlled one-time Put at startup.
type globalConfigOwner struct {
	mtx sync.Mutex
	c   unsafe.Pointer
}

// GCO (Global Config Owner) holds the process-wide configuration.
var GCO = &globalConfigOwner{}

func (g *globalConfigOwner) Get() *Config {
	p := atomic.LoadPointer(&g.c)
	if p == nil {
		return nil
	}
	return (*Config)(p)
}

func (g *globalConfigOwner) Put(config *Config) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	atomic.StorePointer(&g.c, unsafe.Pointer(config))
}

// EnsureSigningSecret loads a previously persisted signing secret from
// metadataDir, or generates and persists one via cmn/jsp. genHex must
// return n bytes of cryptographically random data rendered as hex; it is passed in by
// the caller (crypto package) rather than imported here to keep cmn
// dependency-free of the crypto package's own higher-level concerns.
func EnsureSigningSecret(metadataDir string, genHex func(nBytes int) string) (string, error) {
	path := metadataDir + "/signing_secret.json"
	var persisted struct {
		Secret string `json:"secret"`
	}
	if err := jsp.Load(path, &persisted); err == nil && persisted.Secret != "" {
		return persisted.Secret, nil
	} else if err != nil && !os.IsNotExist(err) {
		glog.Warningf("cmn: failed to load persisted signing secret, regenerating: %v", err)
	}
	secret := genHex(32)
	persisted.Secret = secret
	if err := jsp.Save(path, &persisted); err != nil {
		return "", err
	}
	return secret, nil
}
