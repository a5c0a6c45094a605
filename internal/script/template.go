package script

// DefaultTemplate is the 2-of-3 predicate. Each slot holds the address
// (SHA-256 of the public key) of one signer; a spend is accepted when at
// least two of the three signatures recover to the address in their slot.
const DefaultTemplate = `predicate;

use std::{b512::B512, constants::ZERO_B256, ecr::ec_recover_address, inputs::input_predicate_data};

configurable {
    MESSAGE: b256 = ZERO_B256,
}

fn signed_by(signature: B512, signer: b256) -> u64 {
    match ec_recover_address(signature, MESSAGE) {
        Result::Ok(recovered) => {
            if recovered.value == signer { 1 } else { 0 }
        },
        Result::Err(_) => 0,
    }
}

fn main() -> bool {
    let signatures: [B512; 3] = input_predicate_data(0);

    let signers = [
        {{public_key_1}},
        {{public_key_2}},
        {{public_key_3}},
    ];

    let mut matched = 0;
    let mut i = 0;
    while i < 3 {
        matched = matched + signed_by(signatures[i], signers[i]);
        i = i + 1;
    }

    matched >= 2
}
`

// manifestTemplate is the forc project descriptor written next to the source.
const manifestTemplate = `[project]
authors = ["multisigd"]
entry = "main.sw"
license = "Apache-2.0"
name = "{{name}}"
`

// Placeholders that every wallet template must contain, in slot order.
var Placeholders = [3]string{"public_key_1", "public_key_2", "public_key_3"}
