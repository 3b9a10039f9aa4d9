/*
 * Copyright 2025 FastyBird s.r.o.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package coap

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/FastyBird/shelly-connector/pkg/logger"
)

// Gen1 CoAP devices live on this well-known multicast group.
const (
	DefaultMulticastGroup = "224.0.1.187"
	DefaultPort           = 5683
)

// discoveryDatagram is the fixed 11-byte CoAP GET /cit/d request Shelly
// Gen1 firmware recognizes as a discovery trigger.
var discoveryDatagram = []byte{0x50, 0x01, 0x00, 0x0A, 0xB3, 0x63, 0x69, 0x74, 0x01, 0x64, 0xFF}

// Message is one decoded frame handed to the connector's receiver, tagged
// with the sender's address for logging.
type Message struct {
	Frame *Frame
	From  *net.UDPAddr
}

// Client listens on the Gen1 multicast group, periodically transmits the
// discovery datagram, and decodes every inbound frame into a Message.
//
// It owns exactly one UDP socket, joined to the multicast group via
// golang.org/x/net/ipv4 so multicast loopback can be disabled; the same
// socket both receives frames and transmits the discovery datagram.
type Client struct {
	group             string
	port              int
	discoveryInterval time.Duration
	readTimeout       time.Duration
	fixDW2Payload     bool

	conn    *net.UDPConn
	pconn   *ipv4.PacketConn
	groupIP net.IP
	logger  logger.Logger

	mu      sync.Mutex
	started bool
}

// Config configures a Client.
type Config struct {
	MulticastGroup    string
	Port              int
	DiscoveryInterval time.Duration
	ReadTimeout       time.Duration
	FixDW2Payload     bool
}

// New constructs a Client bound to cfg's multicast group but does not
// open any socket yet; call Start to begin listening.
func New(cfg Config, log logger.Logger) *Client {
	group := cfg.MulticastGroup
	if group == "" {
		group = DefaultMulticastGroup
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Client{
		group:             group,
		port:              port,
		discoveryInterval: cfg.DiscoveryInterval,
		readTimeout:       cfg.ReadTimeout,
		fixDW2Payload:     cfg.FixDW2Payload,
		logger:            log.WithComponent("coap.client"),
	}
}

// Start joins the multicast group and begins the periodic discovery
// transmitter. messages receives every successfully decoded frame until
// ctx is cancelled or Stop is called.
func (c *Client) Start(ctx context.Context, messages chan<- Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("coap: client already started")
	}

	groupIP := net.ParseIP(c.group)
	if groupIP == nil {
		return fmt.Errorf("coap: invalid multicast group %q", c.group)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: c.port})
	if err != nil {
		return fmt.Errorf("coap: listen: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)

	ifaces, err := multicastInterfaces()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("coap: list interfaces: %w", err)
	}

	group := &net.UDPAddr{IP: groupIP, Port: c.port}
	joined := 0

	for _, iface := range ifaces {
		if joinErr := pconn.JoinGroup(iface, group); joinErr == nil {
			joined++
		}
	}

	if joined == 0 {
		if joinErr := pconn.JoinGroup(nil, group); joinErr != nil {
			_ = conn.Close()
			return fmt.Errorf("coap: join multicast group: %w", joinErr)
		}
	}

	if err := pconn.SetMulticastLoopback(false); err != nil {
		c.logger.Debug().Err(err).Msg("multicast loopback could not be disabled")
	}

	c.conn = conn
	c.pconn = pconn
	c.groupIP = groupIP
	c.started = true

	go c.receiveLoop(ctx, messages)
	go c.discoveryLoop(ctx)

	return nil
}

// Stop leaves the multicast group and closes the socket.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	c.started = false

	return c.conn.Close()
}

// Discover transmits the discovery datagram immediately, independent of
// the periodic schedule.
func (c *Client) Discover() error {
	c.mu.Lock()
	conn := c.conn
	group := c.groupIP
	port := c.port
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("coap: client not started")
	}

	_, err := conn.WriteToUDP(discoveryDatagram, &net.UDPAddr{IP: group, Port: port})

	return err
}

func (c *Client) discoveryLoop(ctx context.Context) {
	interval := c.discoveryInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := c.Discover(); err != nil {
		c.logger.Warn().Err(err).Msg("initial discovery datagram failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Discover(); err != nil {
				c.logger.Warn().Err(err).Msg("discovery datagram failed")
			}
		}
	}
}

func (c *Client) receiveLoop(ctx context.Context, messages chan<- Message) {
	buf := make([]byte, 65536)

	readTimeout := c.readTimeout
	if readTimeout <= 0 {
		readTimeout = 100 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			c.logger.Warn().Err(err).Msg("failed to set read deadline")
			return
		}

		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}

			if ctx.Err() != nil {
				return
			}

			c.logger.Warn().Err(err).Msg("multicast read failed")

			continue
		}

		frame, err := Decode(buf[:n], Options{FixDW2Payload: c.fixDW2Payload})
		if err != nil {
			if err == ErrUnsupportedCode {
				continue
			}

			c.logger.Debug().Err(err).Str("peer", addr.String()).Msg("discarding malformed coap frame")

			continue
		}

		select {
		case messages <- Message{Frame: frame, From: addr}:
		case <-ctx.Done():
			return
		}
	}
}

func multicastInterfaces() ([]*net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	result := make([]*net.Interface, 0, len(all))

	for i := range all {
		iface := all[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}

		result = append(result, &iface)
	}

	return result, nil
}
