package config

// Default configuration values.
const (
	DefaultKsize          = 31
	DefaultScaled         = 1000
	DefaultMoltype        = "DNA"
	DefaultThreshold      = 0.01
	DefaultThresholdBP    = "50000"
	DefaultCores          = 0
	DefaultJaccard        = true
	DefaultMaxContainment = true
	DefaultAllowFailed    = false

	DefaultOutputBuffer   = 0
	DefaultOutputIdentity = "stem"

	DefaultStrictSchema = false
	DefaultS3Secure     = true

	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultOTLPInsecure = false
)
