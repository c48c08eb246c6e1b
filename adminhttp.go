package spantree

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminServer exposes a read-only view of the Network Store over
// HTTP, for operators who want to inspect link state without a raw
// protocol trace. Every handler snapshots under RLock and releases it
// before writing the response; the store lock is never held across
// I/O.
type AdminServer struct {
	Net  *Network
	Core *Core
	echo *echo.Echo
}

// NewAdminServer builds the routed Echo instance.
func NewAdminServer(net *Network, core *Core) *AdminServer {
	s := &AdminServer{Net: net, Core: core, echo: echo.New()}
	s.echo.HideBanner = true
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/servers", s.handleServers)
	s.echo.GET("/servers/:sid", s.handleServer)
	s.echo.GET("/users", s.handleUsers)
	s.echo.GET("/users/:uid", s.handleUser)
	s.echo.GET("/channels", s.handleChannels)
	s.echo.GET("/channels/:name", s.handleChannel)
	return s
}

// ListenAndServe blocks serving the admin API on addr.
func (s *AdminServer) ListenAndServe(addr string) error {
	return s.echo.Start(addr)
}

func (s *AdminServer) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"connected": s.Core.Connected(),
	})
}

type serverView struct {
	SID         string   `json:"sid"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	UplinkSID   string   `json:"uplink_sid"`
	IsInternal  bool     `json:"is_internal"`
	Users       []string `json:"users"`
}

func (s *AdminServer) handleServers(c echo.Context) error {
	s.Net.RLock()
	views := make([]serverView, 0, len(s.Net.servers))
	for _, srv := range s.Net.servers {
		views = append(views, snapshotServer(srv))
	}
	s.Net.RUnlock()
	return c.JSON(http.StatusOK, views)
}

func (s *AdminServer) handleServer(c echo.Context) error {
	sid := c.Param("sid")
	s.Net.RLock()
	srv, ok := s.Net.Server(sid)
	var view serverView
	if ok {
		view = snapshotServer(srv)
	}
	s.Net.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown server")
	}
	return c.JSON(http.StatusOK, view)
}

func snapshotServer(srv *Server) serverView {
	uids := make([]string, 0, len(srv.Users))
	for uid := range srv.Users {
		uids = append(uids, uid)
	}
	return serverView{
		SID: srv.SID, Name: srv.Name, Description: srv.Description,
		UplinkSID: srv.UplinkSID, IsInternal: srv.IsInternal, Users: uids,
	}
}

type userView struct {
	UID      string   `json:"uid"`
	Nick     string   `json:"nick"`
	TS       int64    `json:"ts"`
	Ident    string   `json:"ident"`
	Host     string   `json:"host"`
	RealHost string   `json:"real_host"`
	IP       string   `json:"ip"`
	RealName string   `json:"real_name"`
	OperType string   `json:"opertype,omitempty"`
	Away     string   `json:"away,omitempty"`
	LastIdle int64    `json:"last_idle"`
	Channels []string `json:"channels"`
}

func (s *AdminServer) handleUsers(c echo.Context) error {
	s.Net.RLock()
	views := make([]userView, 0, len(s.Net.users))
	for _, u := range s.Net.users {
		views = append(views, snapshotUser(u))
	}
	s.Net.RUnlock()
	return c.JSON(http.StatusOK, views)
}

func (s *AdminServer) handleUser(c echo.Context) error {
	uid := c.Param("uid")
	s.Net.RLock()
	u, ok := s.Net.User(uid)
	var view userView
	if ok {
		view = snapshotUser(u)
	}
	s.Net.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown user")
	}
	return c.JSON(http.StatusOK, view)
}

func snapshotUser(u *User) userView {
	chans := make([]string, 0, len(u.Channels))
	for ch := range u.Channels {
		chans = append(chans, ch)
	}
	return userView{
		UID: u.UID, Nick: u.Nick, TS: u.TS, Ident: u.Ident, Host: u.Host,
		RealHost: u.RealHost, IP: u.IP, RealName: u.RealName,
		OperType: u.OperType, Away: u.Away, LastIdle: u.LastIdle, Channels: chans,
	}
}

type channelView struct {
	Name     string   `json:"name"`
	TS       int64    `json:"ts"`
	Topic    string   `json:"topic"`
	TopicSet bool     `json:"topic_set"`
	Users    []string `json:"users"`
}

func (s *AdminServer) handleChannels(c echo.Context) error {
	s.Net.RLock()
	views := make([]channelView, 0, len(s.Net.channels))
	for _, ch := range s.Net.channels {
		views = append(views, snapshotChannel(ch))
	}
	s.Net.RUnlock()
	return c.JSON(http.StatusOK, views)
}

func (s *AdminServer) handleChannel(c echo.Context) error {
	name := c.Param("name")
	s.Net.RLock()
	ch, ok := s.Net.LookupChannel(name)
	var view channelView
	if ok {
		view = snapshotChannel(ch)
	}
	s.Net.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown channel")
	}
	return c.JSON(http.StatusOK, view)
}

func snapshotChannel(ch *Channel) channelView {
	uids := make([]string, 0, len(ch.Users))
	for uid := range ch.Users {
		uids = append(uids, uid)
	}
	return channelView{Name: ch.Name, TS: ch.TS, Topic: ch.Topic, TopicSet: ch.TopicSet, Users: uids}
}
