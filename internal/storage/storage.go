// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package storage is the Postgres/TimescaleDB adapter for the packet
// pipeline: node validation, firewall rule loading, bulk packet insert,
// and the reader's watermark-based peer-packet fetch, backed by
// jackc/pgx/v5.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stagrdb.node/internal/firewall"
	"stagrdb.node/internal/firewallsvc"
	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/nodeconfig"
	"stagrdb.node/internal/nodeerrors"
	"stagrdb.node/internal/parser"
	"stagrdb.node/internal/wire"
)

const (
	PoolMaxConns       = 30
	PoolMinIdleConns   = 10
	poolConnectTimeout = 10 * time.Second
	poolIdleTimeout    = 60 * time.Second
	poolMaxLifetime    = 30 * time.Minute

	chunkSize  = 50
	maxRetries = 3
)

// Store wraps a pgxpool.Pool shared by every query the node issues.
type Store struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// Open builds a connection pool from cfg. logger may be nil.
func Open(ctx context.Context, cfg nodeconfig.DatabaseConfig, logger *logging.Logger) (*Store, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?connect_timeout=%d",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, int(poolConnectTimeout.Seconds()))

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nodeerrors.Wrap(err, nodeerrors.KindStartupConfig, "parse database DSN")
	}
	poolCfg.MaxConns = PoolMaxConns
	poolCfg.MinConns = PoolMinIdleConns
	poolCfg.MaxConnIdleTime = poolIdleTimeout
	poolCfg.MaxConnLifetime = poolMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "connect to database")
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureNode validates that nodeID is registered in node_list and
// returns its configured name.
func (s *Store) EnsureNode(ctx context.Context, nodeID int16) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, "SELECT name FROM node_list WHERE id = $1", nodeID).Scan(&name)
	if err != nil {
		return "", nodeerrors.Wrapf(err, nodeerrors.KindStartupConfig, "node %d is not registered in node_list", nodeID)
	}
	return name, nil
}

// NodeActivity records one node's boot-time interface/MAC/IP state.
type NodeActivity struct {
	NodeID        int16
	InterfaceName string
	MacAddress    wire.MacAddress
	IPAddresses   []string
}

// RecordActivity inserts a boot-time node_activity row.
func (s *Store) RecordActivity(ctx context.Context, a NodeActivity) error {
	ipCSV := strings.Join(a.IPAddresses, ",")
	if ipCSV == "" {
		ipCSV = "0.0.0.0/0"
	}
	var activityID int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO node_activity (node_id, boot_time, interface_name, mac_address, ip_addresses)
		 VALUES ($1, NOW(), $2, $3, $4) RETURNING id`,
		a.NodeID, a.InterfaceName, a.MacAddress.String(), ipCSV,
	).Scan(&activityID)
	if err != nil {
		return nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "record node activity")
	}
	return nil
}

// LoadFirewallRows implements firewallsvc.Loader: it resolves the
// effective policy (highest-priority row among node-specific and
// node_id IS NULL rows), checks every distinct policy string found
// agrees with it, and returns the parsed rule rows.
func (s *Store) LoadFirewallRows(ctx context.Context, nodeID int16) ([]firewallsvc.Row, firewall.Policy, error) {
	var policyStr string
	err := s.pool.QueryRow(ctx,
		`SELECT policy FROM firewall_settings WHERE (node_id = $1 OR node_id IS NULL) ORDER BY priority DESC LIMIT 1`,
		nodeID,
	).Scan(&policyStr)
	policy := firewall.Whitelist
	if err == nil {
		policy = parsePolicy(policyStr)
	} else if err != pgx.ErrNoRows {
		return nil, policy, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "query firewall policy")
	}

	distinctRows, err := s.pool.Query(ctx,
		`SELECT DISTINCT policy FROM firewall_settings WHERE (node_id = $1 OR node_id IS NULL)`, nodeID)
	if err != nil {
		return nil, policy, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "query distinct firewall policies")
	}
	defer distinctRows.Close()
	for distinctRows.Next() {
		var p string
		if err := distinctRows.Scan(&p); err != nil {
			return nil, policy, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "scan distinct policy")
		}
		if current := parsePolicy(p); current != policy {
			return nil, policy, nodeerrors.Errorf(nodeerrors.KindStartupConfig,
				"inconsistent firewall policy: main policy %s conflicts with %s", policy, current)
		}
	}

	ruleRows, err := s.pool.Query(ctx,
		`SELECT filter_type, filter_value, priority FROM firewall_settings
		 WHERE (node_id = $1 OR node_id IS NULL) ORDER BY priority DESC`, nodeID)
	if err != nil {
		return nil, policy, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "query firewall rules")
	}
	defer ruleRows.Close()

	var rows []firewallsvc.Row
	for ruleRows.Next() {
		var filterType, filterValue string
		var priority int16
		if err := ruleRows.Scan(&filterType, &filterValue, &priority); err != nil {
			return nil, policy, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "scan firewall rule")
		}
		row, ok := parseFilterRule(filterType, filterValue, uint8(priority))
		if !ok {
			if s.logger != nil {
				s.logger.Warn("skipping unrecognized firewall rule",
					"filter_type", filterType, "filter_value", filterValue)
			}
			continue
		}
		rows = append(rows, row)
	}
	return rows, policy, nil
}

func parsePolicy(s string) firewall.Policy {
	switch strings.ToLower(s) {
	case "blacklist":
		return firewall.Blacklist
	default:
		return firewall.Whitelist
	}
}

func parseFilterRule(filterType, filterValue string, priority uint8) (firewallsvc.Row, bool) {
	switch filterType {
	case "SrcIpAddress":
		return firewallsvc.Row{FilterKind: firewall.FilterSrcIP, IP: filterValue, Priority: priority}, true
	case "DstIpAddress":
		return firewallsvc.Row{FilterKind: firewall.FilterDstIP, IP: filterValue, Priority: priority}, true
	case "SrcPort":
		if v, err := strconv.ParseUint(filterValue, 10, 16); err == nil {
			return firewallsvc.Row{FilterKind: firewall.FilterSrcPort, U16: uint16(v), Priority: priority}, true
		}
	case "DstPort":
		if v, err := strconv.ParseUint(filterValue, 10, 16); err == nil {
			return firewallsvc.Row{FilterKind: firewall.FilterDstPort, U16: uint16(v), Priority: priority}, true
		}
	case "EtherType":
		base := 10
		v := filterValue
		if strings.HasPrefix(v, "0x") {
			base = 16
			v = v[2:]
		}
		if parsed, err := strconv.ParseUint(v, base, 16); err == nil {
			return firewallsvc.Row{FilterKind: firewall.FilterEtherType, U16: uint16(parsed), Priority: priority}, true
		}
	case "IpProtocol":
		if v, err := strconv.ParseUint(filterValue, 10, 8); err == nil {
			return firewallsvc.Row{FilterKind: firewall.FilterIPProtocol, U8: uint8(v), Priority: priority}, true
		}
	case "SrcMacAddress":
		return firewallsvc.Row{FilterKind: firewall.FilterSrcMac, MacHex: normalizeMac(filterValue), Priority: priority}, true
	case "DstMacAddress":
		return firewallsvc.Row{FilterKind: firewall.FilterDstMac, MacHex: normalizeMac(filterValue), Priority: priority}, true
	}
	return firewallsvc.Row{}, false
}

func normalizeMac(s string) string {
	return strings.ReplaceAll(s, "-", ":")
}

// BulkInsertPackets inserts packets in chunks of chunkSize, retrying each
// chunk up to maxRetries times with a 100ms*retry backoff. A row-count
// mismatch after any insert is a permanent error for that chunk.
func (s *Store) BulkInsertPackets(ctx context.Context, nodeID int16, packets []parser.ParsedPacket, sleep func(time.Duration)) error {
	if len(packets) == 0 {
		return nil
	}
	if sleep == nil {
		sleep = time.Sleep
	}

	for start := 0; start < len(packets); start += chunkSize {
		end := start + chunkSize
		if end > len(packets) {
			end = len(packets)
		}
		chunk := packets[start:end]

		var lastErr error
		for retry := 0; retry <= maxRetries; retry++ {
			if retry > 0 {
				sleep(time.Duration(100*retry) * time.Millisecond)
			}
			if err := s.insertChunk(ctx, nodeID, chunk); err != nil {
				lastErr = err
				continue
			}
			lastErr = nil
			break
		}
		if lastErr != nil {
			return nodeerrors.Wrap(lastErr, nodeerrors.KindStoragePermanent, "bulk insert chunk failed after retries")
		}
	}
	return nil
}

func (s *Store) insertChunk(ctx context.Context, nodeID int16, chunk []parser.ParsedPacket) error {
	nodeIDs := make([]int16, len(chunk))
	timestamps := make([]time.Time, len(chunk))
	srcMacs := make([]string, len(chunk))
	dstMacs := make([]string, len(chunk))
	etherTypes := make([]int32, len(chunk))
	ipProtocols := make([]int32, len(chunk))
	srcIPs := make([]string, len(chunk))
	dstIPs := make([]string, len(chunk))
	srcPorts := make([]int32, len(chunk))
	dstPorts := make([]int32, len(chunk))
	rawPackets := make([][]byte, len(chunk))

	for i, p := range chunk {
		nodeIDs[i] = nodeID
		timestamps[i] = p.Timestamp
		srcMacs[i] = p.SrcMac.String()
		dstMacs[i] = p.DstMac.String()
		etherTypes[i] = p.EtherType.AsI32()
		ipProtocols[i] = p.IPProtocol.AsI32()
		srcIPs[i] = p.SrcIP.String()
		dstIPs[i] = p.DstIP.String()
		srcPorts[i] = p.SrcPort
		dstPorts[i] = p.DstPort
		rawPackets[i] = p.Raw
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO packets (
			node_id, timestamp, src_mac, dst_mac, ether_type, ip_protocol,
			src_ip, dst_ip, src_port, dst_port, raw_packet
		)
		SELECT *
		FROM (
			SELECT
				unnest($1::SMALLINT[]) AS node_id,
				unnest($2::TIMESTAMPTZ[]) AS timestamp,
				unnest($3::macaddr[]) AS src_mac,
				unnest($4::macaddr[]) AS dst_mac,
				unnest($5::INTEGER[]) AS ether_type,
				unnest($6::INTEGER[]) AS ip_protocol,
				unnest($7::inet[]) AS src_ip,
				unnest($8::inet[]) AS dst_ip,
				unnest($9::INTEGER[]) AS src_port,
				unnest($10::INTEGER[]) AS dst_port,
				unnest($11::BYTEA[]) AS raw_packet
		) t`,
		nodeIDs, timestamps, srcMacs, dstMacs, etherTypes, ipProtocols,
		srcIPs, dstIPs, srcPorts, dstPorts, rawPackets,
	)
	if err != nil {
		return fmt.Errorf("execute bulk insert: %w", err)
	}
	if int(tag.RowsAffected()) != len(chunk) {
		return fmt.Errorf("inserted row count mismatch: expected %d, got %d", len(chunk), tag.RowsAffected())
	}
	return tx.Commit(ctx)
}

// PeerPacketRow is one row fetched by FetchPeerPackets.
type PeerPacketRow struct {
	ID        int64
	Timestamp time.Time
	Raw       []byte
}

// FetchPeerPackets implements the reader's watermark query. On the first
// fetch it ignores history older than now()-4s and writes no processed
// markers; on later fetches it filters by the processed_packets
// left-join watermark and writes markers for every row returned.
func (s *Store) FetchPeerPackets(ctx context.Context, nodeID int16, isFirst bool, lastTimestamp *time.Time) ([]PeerPacketRow, error) {
	var rows pgx.Rows
	var err error

	if isFirst {
		rows, err = s.pool.Query(ctx,
			`SELECT timestamp, raw_packet FROM packets
			 WHERE node_id != $1 AND timestamp >= NOW() - INTERVAL '4 seconds'
			 ORDER BY timestamp ASC LIMIT 1000`, nodeID)
	} else {
		fallback := time.Now().Add(-5 * time.Second)
		ts := fallback
		if lastTimestamp != nil {
			ts = *lastTimestamp
		}
		rows, err = s.pool.Query(ctx,
			`SELECT p.id, p.timestamp, p.raw_packet
			 FROM packets p
			 LEFT JOIN processed_packets pp ON p.id = pp.packet_id AND pp.node_id = $1
			 WHERE p.node_id != $1 AND p.timestamp > $2 AND pp.packet_id IS NULL
			 ORDER BY p.timestamp ASC LIMIT 1000`, nodeID, ts)
	}
	if err != nil {
		return nil, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "fetch peer packets")
	}
	defer rows.Close()

	var out []PeerPacketRow
	for rows.Next() {
		var r PeerPacketRow
		if isFirst {
			if err := rows.Scan(&r.Timestamp, &r.Raw); err != nil {
				return nil, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "scan peer packet row")
			}
		} else {
			if err := rows.Scan(&r.ID, &r.Timestamp, &r.Raw); err != nil {
				return nil, nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "scan peer packet row")
			}
		}
		out = append(out, r)
	}

	if !isFirst && len(out) > 0 {
		if err := s.markProcessed(ctx, nodeID, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) markProcessed(ctx context.Context, nodeID int16, rows []PeerPacketRow) error {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processed_packets (packet_id, node_id) VALUES (unnest($1::bigint[]), $2)`,
		ids, nodeID)
	if err != nil {
		return nodeerrors.Wrap(err, nodeerrors.KindStorageTransient, "mark packets processed")
	}
	return nil
}
