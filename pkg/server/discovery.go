// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package server

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/nttcom/l2info/pkg/packet/dlep"
)

// PeerOffer is the answer of a radio to a Peer Discovery signal.
type PeerOffer struct {
	PeerType         string
	ConnectionPoints []dlep.ConnectionPoint
}

func (po PeerOffer) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("peerType", po.PeerType)
	return enc.AddArray("connectionPoints", zapcore.ArrayMarshalerFunc(func(ae zapcore.ArrayEncoder) error {
		for _, cp := range po.ConnectionPoints {
			if err := ae.AppendObject(cp); err != nil {
				return err
			}
		}
		return nil
	}))
}

func PeerDiscoverySignal(peerType string) ([]byte, error) {
	w := dlep.NewSignalWriter(dlep.SignalPeerDiscovery)
	if peerType != "" {
		w.AddPeerType(peerType)
	}
	return w.Finish()
}

// DecodePeerOffer decodes a Peer Offer signal. An offer without connection
// points means the radio listens on its source address and the default port.
func DecodePeerOffer(buf []byte) (PeerOffer, error) {
	t, vs, err := dlep.DecodeSignal(buf)
	if err != nil {
		return PeerOffer{}, err
	}
	if t != dlep.SignalPeerOffer {
		return PeerOffer{}, fmt.Errorf("unexpected signal %s", t)
	}

	var offer PeerOffer
	var text [maxTextLength]byte
	if n, err := dlep.PeerType(vs, nil, text[:]); err == nil {
		offer.PeerType = string(text[:n])
	} else if !errors.Is(err, dlep.ErrTLVNotFound) {
		return PeerOffer{}, err
	}

	readers := []struct {
		tlv  dlep.TLVType
		read func(*dlep.ValueStore, *dlep.TLVEntry) (dlep.ConnectionPoint, error)
	}{
		{dlep.TLVIPv4ConnectionPoint, dlep.IPv4ConnectionPoint},
		{dlep.TLVIPv6ConnectionPoint, dlep.IPv6ConnectionPoint},
	}
	for _, r := range readers {
		for e := range vs.All(r.tlv) {
			cp, err := r.read(vs, &e)
			if err != nil {
				return PeerOffer{}, err
			}
			offer.ConnectionPoints = append(offer.ConnectionPoints, cp)
		}
	}
	return offer, nil
}
