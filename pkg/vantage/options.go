package vantage

import "time"

// ClientOptions contains configurable options for a Vantage host-command
// client.
type ClientOptions struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// NewClientOptions will create a new ClientOptions type with some default
// values.
//
//	Port: 3001
//	ConnectTimeout: 10 seconds
//	RequestTimeout: 5 seconds
func NewClientOptions() *ClientOptions {
	return &ClientOptions{
		Host:           "",
		Port:           3001,
		Username:       "",
		Password:       "",
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// SetHost will set the address of the Vantage controller to connect to.
func (o *ClientOptions) SetHost(host string) *ClientOptions {
	o.Host = host
	return o
}

// SetPort will set the host-command port of the Vantage controller.
func (o *ClientOptions) SetPort(port int) *ClientOptions {
	o.Port = port
	return o
}

// SetUsername will set the username used on the LOGIN exchange. Leave empty
// for controllers without authentication.
func (o *ClientOptions) SetUsername(u string) *ClientOptions {
	o.Username = u
	return o
}

// SetPassword will set the password used on the LOGIN exchange.
func (o *ClientOptions) SetPassword(p string) *ClientOptions {
	o.Password = p
	return o
}
