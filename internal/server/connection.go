package server

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/aanand-mishra/users-server/internal/config"
	"github.com/aanand-mishra/users-server/internal/protocol"
	"github.com/aanand-mishra/users-server/internal/types"
)

// handleConnection serves one client until it disconnects or an I/O error
// occurs. Errors end this connection only.
func (s *Server) handleConnection(conn net.Conn) {
	log := s.log.With(
		slog.String("session", uuid.NewString()),
		slog.String("remote", conn.RemoteAddr().String()),
	)

	s.conns.Store(conn, struct{}{})
	s.active.Add(1)
	defer func() {
		s.active.Add(-1)
		s.conns.Delete(conn)
		conn.Close()
		log.Info("connection closed")
	}()

	// Stop may have swept s.conns before this handler registered.
	if s.stopping() {
		return
	}

	buf := make([]byte, s.cfg.BufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if werr := s.dispatch(conn, buf[:n], log); werr != nil {
				log.Error("write failed", slog.Any("error", werr))
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debug("peer closed connection")
			case errors.Is(err, net.ErrClosed) && s.stopping():
			default:
				log.Error("read failed", slog.Any("error", err))
			}
			return
		}
	}
}

// dispatch runs one command and writes its response. The returned error is
// always a socket write error; store errors are logged and swallowed.
func (s *Server) dispatch(conn net.Conn, buf []byte, log *slog.Logger) error {
	cmd := protocol.Parse(buf)

	switch cmd.Kind {
	case protocol.KindAddUser:
		id, err := s.store.InsertUser(cmd.Name, cmd.Age)
		if err != nil {
			// The client still gets "User added": the protocol has no
			// failure response for inserts.
			log.Error("insert user failed",
				slog.String("name", cmd.Name),
				slog.Int("age", cmd.Age),
				slog.Any("error", err),
			)
		} else {
			log.Debug("user added", slog.Int64("id", id))
		}
		_, err = io.WriteString(conn, protocol.UserAdded)
		return err

	case protocol.KindListUsers:
		return s.listUsers(conn, log)

	default:
		log.Debug("unknown command", slog.Int("bytes", len(cmd.Raw)))
		_, err := io.WriteString(conn, protocol.UnknownCommand)
		return err
	}
}

// listUsers streams every user as "<id> <name> <age>\n".
func (s *Server) listUsers(conn net.Conn, log *slog.Logger) error {
	var err error
	if s.cfg.ListMode == config.ListModeLocked {
		err = s.listLocked(conn, log)
	} else {
		err = s.listSnapshot(conn, log)
	}
	if err != nil {
		return err
	}

	if s.cfg.ListTerminator != "" {
		_, err = io.WriteString(conn, s.cfg.ListTerminator+"\n")
	}
	return err
}

// listLocked writes rows from inside the store's critical section. Every
// other connection's store access waits until the last row is on the wire.
func (s *Server) listLocked(conn net.Conn, log *slog.Logger) error {
	var writeErr error
	rows := 0

	err := s.store.ScanUsers(func(u types.User) error {
		if _, err := conn.Write(protocol.FormatUser(u)); err != nil {
			writeErr = err
			return err
		}
		rows++
		return nil
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		log.Error("scan users failed", slog.Any("error", err))
	}

	log.Debug("users listed", slog.Int("rows", rows), slog.String("mode", config.ListModeLocked))
	return nil
}

// listSnapshot copies the rows under the store lock and writes them after
// it has been released.
func (s *Server) listSnapshot(conn net.Conn, log *slog.Logger) error {
	users, err := s.store.ListUsers()
	if err != nil {
		log.Error("list users failed", slog.Any("error", err))
		return nil
	}

	w := bufio.NewWriterSize(conn, s.cfg.BufferSize)
	for _, u := range users {
		if _, err := w.Write(protocol.FormatUser(u)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	log.Debug("users listed", slog.Int("rows", len(users)), slog.String("mode", config.ListModeSnapshot))
	return nil
}
