package common

// Request headers carrying device information when the JSON body does not.
const (
	DeviceIDHeader       = "X-Device-Id"
	DeviceMobileHeader   = "X-Device-Mobile"
	DeviceBrowserHeader  = "X-Device-Browser"
	DevicePlatformHeader = "X-Device-Platform"

	// ClientIDHeader identifies the browser tab on REST calls so change
	// pushes can carry by_self.
	ClientIDHeader = "X-Client-Id"
)

// PasswordSentinel is the plaintext stored in verification.enc. Decrypting it
// back proves the derived key, and therefore the password, is correct.
const PasswordSentinel = "password"
